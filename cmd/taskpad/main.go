// Command taskpad runs the TaskPad server and its companion tools.
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args)
	case "migrate":
		return runMigrate(args)
	case "admin":
		return runAdmin(args)
	case "chat":
		return runChat(args)
	case "help", "--help":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: taskpad <command> [options]

Commands:
  serve              Run the HTTP server (default)
  migrate            Apply or roll back database migrations
  admin              User administration
  chat               Talk to the task assistant from the terminal
  help               Show this help message
`)
}

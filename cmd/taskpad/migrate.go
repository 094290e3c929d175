package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Strob0t/taskpad/internal/adapter/postgres"
	"github.com/Strob0t/taskpad/internal/config"
)

const migrateUsage = "Usage: taskpad migrate up|down [n]|version|status"

// runMigrate handles `taskpad migrate <command>`.
func runMigrate(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, migrateUsage)
		return errors.New("missing migrate command")
	}
	steps, err := migrateSteps(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := postgres.OpenMigrator(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	switch args[0] {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "applied %d migration(s)\n", n)
	case "down":
		n, err := m.Down(ctx, steps)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "rolled back %d migration(s)\n", n)
	case "status":
		list, err := m.Status(ctx)
		if err != nil {
			return err
		}
		printMigrationStatus(os.Stdout, list)
		return nil
	case "version":
	}

	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "database at migration version %d\n", version)
	return nil
}

// migrateSteps checks the command before anything connects and returns
// the rollback count for down.
func migrateSteps(args []string) (int, error) {
	switch args[0] {
	case "up", "version", "status":
		return 0, nil
	case "down":
		if len(args) < 2 {
			return 1, nil
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid step count %q", args[1])
		}
		return n, nil
	default:
		fmt.Fprintln(os.Stderr, migrateUsage)
		return 0, fmt.Errorf("unknown migrate command: %s", args[0])
	}
}

func printMigrationStatus(w io.Writer, list []postgres.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tFILE\tAPPLIED")
	for _, s := range list {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	_ = tw.Flush()
}

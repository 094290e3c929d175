package config

import (
	"flag"
	"fmt"
	"io"
)

// CLIFlags holds command-line overrides. Nil fields were not set.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
}

// ParseFlags parses serve flags. Only flags present in args are non-nil.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath, port, logLevel, dsn, natsURL string
	)
	fs.StringVar(&configPath, "config", "", "path to YAML config")
	fs.StringVar(&configPath, "c", "", "shorthand for --config")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "shorthand for --port")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var out CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			out.ConfigPath = &configPath
		case "port", "p":
			out.Port = &port
		case "log-level":
			out.LogLevel = &logLevel
		case "dsn":
			out.DSN = &dsn
		case "nats-url":
			out.NatsURL = &natsURL
		}
	})
	return out, nil
}

// LoadWithCLI applies defaults < YAML < ENV < CLI. --config wins over
// TASKPAD_CONFIG for the YAML path.
func LoadWithCLI(flags CLIFlags) (*Config, error) {
	return load(configPath(flags.ConfigPath), &flags)
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/taskpad/internal/adapter/postgres"
	"github.com/Strob0t/taskpad/internal/config"
	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/service"
)

type adminCommand struct {
	name    string
	summary string
	run     func(ctx context.Context, auth *service.AuthService, args []string, out io.Writer) error
}

var adminCommands = []adminCommand{
	{name: "create-user", summary: "register an account", run: adminCreateUser},
	{name: "token", summary: "print an access token for an account", run: adminToken},
}

// runAdmin dispatches admin subcommands against the configured database.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp(os.Stderr)
		return nil
	}

	for _, c := range adminCommands {
		if c.name != args[0] {
			continue
		}
		auth, cleanup, err := loadAdminDeps()
		if err != nil {
			return err
		}
		defer cleanup()
		return c.run(context.Background(), auth, args[1:], os.Stdout)
	}

	printAdminHelp(os.Stderr)
	return fmt.Errorf("unknown admin command: %s", args[0])
}

func printAdminHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskpad admin <command> [options]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range adminCommands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, `Example: taskpad admin create-user --email ada@example.com --name "Ada"`)
}

func loadAdminDeps() (*service.AuthService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := postgres.NewPool(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return service.NewAuthService(postgres.NewStore(pool), &cfg.Auth), pool.Close, nil
}

func adminCreateUser(ctx context.Context, auth *service.AuthService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "display name (required)")
	password := fs.String("password", "", "password, prompted when empty") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := &user.CreateRequest{Email: *email, Name: *name, Password: *password}
	req.Normalize()
	if req.Password == "" {
		pw, err := promptNewPassword()
		if err != nil {
			return err
		}
		req.Password = pw
	}

	u, err := auth.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(out, "created %s (id=%s)\n", u.Email, u.ID)
	return nil
}

func adminToken(ctx context.Context, auth *service.AuthService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	email := fs.String("email", "", "account email (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	resp, err := auth.IssueToken(ctx, *email)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(out, resp.AccessToken)
	return nil
}

func promptNewPassword() (string, error) {
	pw, err := promptPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

// promptPassword reads a line from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

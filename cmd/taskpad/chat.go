package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/Strob0t/taskpad/internal/adapter/apiclient"
	"github.com/Strob0t/taskpad/internal/domain/assistant"
	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/service"
)

var (
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	aiStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// lineReader is the input side of the chat loop.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// runChat handles `taskpad chat`.
func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	server := fs.String("server", envOr("TASKPAD_SERVER", "http://localhost:8080"), "TaskPad server URL")
	email := fs.String("email", "", "log in as this user (password is prompted)")
	token := fs.String("token", os.Getenv("TASKPAD_TOKEN"), "bearer token for the server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := apiclient.New(*server, *token, 0)
	if *email != "" {
		pass, err := promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if _, err := client.Login(context.Background(), *email, pass); err != nil {
			return err
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            userStyle.Render("you") + " > ",
		HistoryFile:       historyPath(),
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	return newChat(client, rl, rl.Stdout()).run(context.Background())
}

type chat struct {
	session *service.AssistantSession
	tasks   service.TaskBackend
	in      lineReader
	out     io.Writer
}

func newChat(client *apiclient.Client, in lineReader, out io.Writer) *chat {
	return &chat{
		session: service.NewAssistantSession(uuid.NewString(), "", client.Assistant(), client),
		tasks:   client,
		in:      in,
		out:     out,
	}
}

func (c *chat) run(ctx context.Context) error {
	for _, m := range c.session.Messages() {
		c.print(m)
	}
	fmt.Fprintln(c.out, mutedStyle.Render("/tasks lists your tasks, /quit exits"))

	for {
		line, err := c.in.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/tasks":
			c.printTasks(ctx)
			continue
		}

		reply, err := c.session.Submit(ctx, line)
		switch {
		case errors.Is(err, service.ErrEmptyPrompt):
			continue
		case err != nil:
			fmt.Fprintln(c.out, errorStyle.Render(err.Error()))
			continue
		}
		c.print(reply)
	}
}

func (c *chat) print(m assistant.Message) {
	if m.Role == assistant.RoleUser {
		return
	}
	fmt.Fprintln(c.out, aiStyle.Render("ai")+"  "+m.Content)
}

func (c *chat) printTasks(ctx context.Context) {
	tasks, err := c.tasks.List(ctx, task.ViewAll)
	if err != nil {
		fmt.Fprintln(c.out, errorStyle.Render("list tasks: "+err.Error()))
		return
	}
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, mutedStyle.Render("no tasks"))
		return
	}
	for i := range tasks {
		mark := "[ ]"
		if tasks[i].IsDone {
			mark = "[x]"
		}
		due := ""
		if tasks[i].DueDate != nil {
			due = mutedStyle.Render("  due " + tasks[i].DueDate.Local().Format(time.DateOnly))
		}
		fmt.Fprintf(c.out, "%s %s%s\n", mark, tasks[i].Title, due)
	}
}

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "taskpad", "chat_history")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ""
	}
	return path
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

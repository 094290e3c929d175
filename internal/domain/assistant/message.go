// Package assistant holds the pure pieces of the task assistant: conversation
// messages, relative date phrases, reply classification and task context.
package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/taskpad/internal/domain/task"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one entry in a conversation. Messages are never mutated once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

const (
	// WelcomeMessage seeds every new conversation.
	WelcomeMessage = "Hi! I can help you organize your tasks. What would you like to know?"
	// ErrorMessage is shown when the remote assistant cannot be reached.
	ErrorMessage = "Sorry, I encountered an error."
	// NoTasksContext is sent as context when the user has no tasks.
	NoTasksContext = "The user has no tasks currently."
)

// Welcome returns the message that opens a conversation.
func Welcome() Message {
	return Message{Role: RoleAI, Content: WelcomeMessage}
}

// BuildTaskContext summarizes tasks for the remote assistant, one numbered line per task.
func BuildTaskContext(tasks []task.Task) string {
	if len(tasks) == 0 {
		return NoTasksContext
	}
	var b strings.Builder
	b.WriteString("User's Current Tasks:")
	for i := range tasks {
		status := "Pending"
		if tasks[i].IsDone {
			status = "Done"
		}
		due := "No Date"
		if tasks[i].DueDate != nil {
			due = tasks[i].DueDate.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "\n%d. %s (Status: %s, Due: %s)", i+1, tasks[i].Title, status, due)
	}
	return b.String()
}

// CreatedMessage confirms a task created on the user's behalf.
func CreatedMessage(t *task.Task) string {
	if t.DueDate == nil {
		return fmt.Sprintf("Task created: %q", t.Title)
	}
	return fmt.Sprintf("Task created: %q (due %s)", t.Title, t.DueDate.Format("Jan 2, 2006"))
}

// FailedMessage reports a task action that could not be carried out.
func FailedMessage(err error) string {
	return "Failed to create task: " + err.Error()
}

// Package broadcast defines the port for pushing real-time events to connected clients.
package broadcast

import (
	"context"

	"github.com/Strob0t/taskpad/internal/domain/assistant"
	"github.com/Strob0t/taskpad/internal/domain/task"
)

// Event types pushed to clients.
const (
	EventTaskCreated      = "task.created"
	EventTaskUpdated      = "task.updated"
	EventTaskDeleted      = "task.deleted"
	EventAssistantMessage = "assistant.message"
)

// TaskPayload is sent with task.created and task.updated.
type TaskPayload struct {
	Task *task.Task `json:"task"`
}

// TaskDeletedPayload is sent with task.deleted.
type TaskDeletedPayload struct {
	TaskID string `json:"task_id"`
}

// AssistantMessagePayload carries a transcript entry appended to a session.
type AssistantMessagePayload struct {
	SessionID string            `json:"session_id"`
	Message   assistant.Message `json:"message"`
}

// Broadcaster sends real-time events to connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to the clients of the user named in ctx.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

package messagequeue

import "github.com/Strob0t/taskpad/internal/domain/task"

// TaskEventPayload is the schema for tasks.* messages. Task is omitted for deletions.
type TaskEventPayload struct {
	TaskID string     `json:"task_id"`
	UserID string     `json:"user_id"`
	Task   *task.Task `json:"task,omitempty"`
}

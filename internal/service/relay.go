package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/middleware"
	"github.com/Strob0t/taskpad/internal/port/broadcast"
	"github.com/Strob0t/taskpad/internal/port/messagequeue"
)

// TaskEventRelay forwards task events from the queue to the owning user's
// real-time clients.
type TaskEventRelay struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewTaskEventRelay creates a relay from queue to hub.
func NewTaskEventRelay(queue messagequeue.Queue, hub broadcast.Broadcaster) *TaskEventRelay {
	return &TaskEventRelay{queue: queue, hub: hub}
}

var subjectEvents = map[string]string{
	messagequeue.SubjectTaskCreated: broadcast.EventTaskCreated,
	messagequeue.SubjectTaskUpdated: broadcast.EventTaskUpdated,
	messagequeue.SubjectTaskDeleted: broadcast.EventTaskDeleted,
}

// Run subscribes to all task subjects and blocks until ctx is done.
func (r *TaskEventRelay) Run(ctx context.Context) error {
	cancel, err := r.queue.Subscribe(ctx, messagequeue.SubjectTaskAll, r.handle)
	if err != nil {
		return fmt.Errorf("subscribe task events: %w", err)
	}
	defer cancel()

	slog.Info("task event relay started", "subject", messagequeue.SubjectTaskAll)
	<-ctx.Done()
	return nil
}

func (r *TaskEventRelay) handle(ctx context.Context, subject string, data []byte) error {
	event, ok := subjectEvents[subject]
	if !ok {
		slog.DebugContext(ctx, "relay ignoring subject", "subject", subject)
		return nil
	}

	var p messagequeue.TaskEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}

	ctx = middleware.WithUser(ctx, &user.User{ID: p.UserID})
	if event == broadcast.EventTaskDeleted {
		r.hub.BroadcastEvent(ctx, event, broadcast.TaskDeletedPayload{TaskID: p.TaskID})
		return nil
	}
	r.hub.BroadcastEvent(ctx, event, broadcast.TaskPayload{Task: p.Task})
	return nil
}

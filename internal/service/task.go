package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/taskpad/internal/adapter/otel"
	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/middleware"
	"github.com/Strob0t/taskpad/internal/port/broadcast"
	"github.com/Strob0t/taskpad/internal/port/cache"
	"github.com/Strob0t/taskpad/internal/port/database"
	"github.com/Strob0t/taskpad/internal/port/messagequeue"
)

// TaskService handles task business logic. Every call is scoped to the user in ctx.
// Mutations invalidate the user's cached list and are announced on the queue,
// or straight to the broadcaster when no queue is connected.
type TaskService struct {
	store    database.Store
	cache    cache.Cache
	cacheTTL time.Duration
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	metrics  *otel.Metrics
}

// NewTaskService creates a new TaskService. cache, queue and hub may be nil.
func NewTaskService(store database.Store, c cache.Cache, cacheTTL time.Duration, queue messagequeue.Queue, hub broadcast.Broadcaster) *TaskService {
	return &TaskService{store: store, cache: c, cacheTTL: cacheTTL, queue: queue, hub: hub}
}

// SetMetrics attaches metric instruments.
func (s *TaskService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

func listCacheKey(userID string) string {
	return "list:" + userID
}

// List returns the caller's tasks in the given view, newest first.
func (s *TaskService) List(ctx context.Context, view task.View) ([]task.Task, error) {
	tasks, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return task.Filter(tasks, view), nil
}

func (s *TaskService) listAll(ctx context.Context) ([]task.Task, error) {
	key := listCacheKey(middleware.UserIDFromContext(ctx))
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var tasks []task.Task
			if err := json.Unmarshal(data, &tasks); err == nil {
				return tasks, nil
			}
		}
	}

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(tasks); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				slog.WarnContext(ctx, "task list cache set failed", "error", err)
			}
		}
	}
	return tasks, nil
}

// Calendar returns the caller's tasks that have a due date as calendar events.
func (s *TaskService) Calendar(ctx context.Context) ([]task.CalendarEvent, error) {
	tasks, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return task.CalendarEvents(tasks), nil
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Create validates req and stores a new task for the caller.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	due, err := req.Validate()
	if err != nil {
		return nil, err
	}

	t := &task.Task{
		Title:   req.Title,
		Content: req.Content,
		IsDone:  req.IsDone,
		DueDate: due,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.metrics.TaskCreated(ctx)
	s.announce(ctx, messagequeue.SubjectTaskCreated, broadcast.EventTaskCreated, t)
	return t, nil
}

// Update applies a partial update to a task.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	wasDone := t.IsDone

	if err := req.Apply(t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	if t.IsDone && !wasDone {
		s.metrics.TaskCompleted(ctx)
	}
	s.announce(ctx, messagequeue.SubjectTaskUpdated, broadcast.EventTaskUpdated, t)
	return t, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)
	s.metrics.TaskDeleted(ctx)
	s.announce(ctx, messagequeue.SubjectTaskDeleted, broadcast.EventTaskDeleted, &task.Task{ID: id})
	return nil
}

func (s *TaskService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, listCacheKey(middleware.UserIDFromContext(ctx))); err != nil {
		slog.WarnContext(ctx, "task list cache invalidation failed", "error", err)
	}
}

// announce publishes a task event. The task is already stored, so a failed
// publish is logged and delivered to the broadcaster directly instead.
func (s *TaskService) announce(ctx context.Context, subject, event string, t *task.Task) {
	if s.queue != nil && s.queue.IsConnected() {
		err := s.publish(ctx, subject, t)
		if err == nil {
			return
		}
		slog.ErrorContext(ctx, "failed to publish task event", "task_id", t.ID, "subject", subject, "error", err)
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, event, eventPayload(event, t))
	}
}

func (s *TaskService) publish(ctx context.Context, subject string, t *task.Task) error {
	p := messagequeue.TaskEventPayload{TaskID: t.ID, UserID: middleware.UserIDFromContext(ctx)}
	if subject != messagequeue.SubjectTaskDeleted {
		p.Task = t
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}
	return s.queue.Publish(ctx, subject, data)
}

func eventPayload(event string, t *task.Task) any {
	if event == broadcast.EventTaskDeleted {
		return broadcast.TaskDeletedPayload{TaskID: t.ID}
	}
	return broadcast.TaskPayload{Task: t}
}

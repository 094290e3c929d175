package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/taskpad/internal/adapter/otel"
	"github.com/Strob0t/taskpad/internal/domain/assistant"
	"github.com/Strob0t/taskpad/internal/domain/task"
	remote "github.com/Strob0t/taskpad/internal/port/assistant"
)

// Submission rejections. None of them alter the conversation.
var (
	ErrEmptyPrompt   = errors.New("empty prompt")
	ErrSessionBusy   = errors.New("assistant session is busy")
	ErrSessionClosed = errors.New("assistant session is closed")
)

// TaskBackend is the task surface an assistant session reads and writes.
type TaskBackend interface {
	List(ctx context.Context, view task.View) ([]task.Task, error)
	Create(ctx context.Context, req task.CreateRequest) (*task.Task, error)
}

// SessionOption configures an AssistantSession.
type SessionOption func(*AssistantSession)

// WithClock sets the reference clock used for relative due dates and idle tracking.
func WithClock(now func() time.Time) SessionOption {
	return func(s *AssistantSession) { s.now = now }
}

// WithMessageHook registers fn to be called for every appended message.
func WithMessageHook(fn func(ctx context.Context, m assistant.Message)) SessionOption {
	return func(s *AssistantSession) { s.onMessage = fn }
}

// WithSessionMetrics attaches metric instruments.
func WithSessionMetrics(m *otel.Metrics) SessionOption {
	return func(s *AssistantSession) { s.metrics = m }
}

// AssistantSession is one user's conversation with the task assistant.
// At most one submission is in flight at a time; each accepted submission
// appends the user message and then exactly one AI message.
type AssistantSession struct {
	id        string
	userID    string
	remote    remote.Remote
	tasks     TaskBackend
	now       func() time.Time
	onMessage func(ctx context.Context, m assistant.Message)
	metrics   *otel.Metrics

	// slot is a single-slot semaphore held for the whole submission.
	slot chan struct{}

	mu         sync.RWMutex
	messages   []assistant.Message
	createdAt  time.Time
	lastActive time.Time
	closed     bool
}

// NewAssistantSession creates a session seeded with the welcome message.
func NewAssistantSession(id, userID string, r remote.Remote, tasks TaskBackend, opts ...SessionOption) *AssistantSession {
	s := &AssistantSession{
		id:       id,
		userID:   userID,
		remote:   r,
		tasks:    tasks,
		now:      time.Now,
		slot:     make(chan struct{}, 1),
		messages: []assistant.Message{assistant.Welcome()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.lastActive = s.createdAt
	return s
}

// ID returns the session ID.
func (s *AssistantSession) ID() string { return s.id }

// UserID returns the owning user's ID.
func (s *AssistantSession) UserID() string { return s.userID }

// Submit sends text to the assistant and returns the AI message it produced.
// Failures of the remote call or the task action are reported as AI messages,
// not errors. The in-flight call is not canceled when ctx is.
func (s *AssistantSession) Submit(ctx context.Context, text string) (assistant.Message, error) {
	if strings.TrimSpace(text) == "" {
		return assistant.Message{}, ErrEmptyPrompt
	}

	select {
	case s.slot <- struct{}{}:
	default:
		return assistant.Message{}, ErrSessionBusy
	}
	defer func() { <-s.slot }()

	ctx = context.WithoutCancel(ctx)
	if !s.append(ctx, assistant.Message{Role: assistant.RoleUser, Content: text}) {
		return assistant.Message{}, ErrSessionClosed
	}
	s.metrics.Prompt(ctx)

	ctx, span := otel.StartAssistantSpan(ctx, s.id)
	reply := s.respond(ctx, text)
	otel.EndSpan(span, nil)

	if !s.append(ctx, reply) {
		return assistant.Message{}, ErrSessionClosed
	}
	return reply, nil
}

func (s *AssistantSession) respond(ctx context.Context, text string) assistant.Message {
	tasks, err := s.tasks.List(ctx, task.ViewAll)
	if err != nil {
		slog.ErrorContext(ctx, "assistant context: list tasks failed", "session_id", s.id, "error", err)
		return aiMessage(assistant.ErrorMessage)
	}

	raw, err := s.remote.Ask(ctx, remote.Request{Prompt: text, Context: assistant.BuildTaskContext(tasks)})
	if err != nil {
		slog.ErrorContext(ctx, "assistant remote call failed", "session_id", s.id, "error", err)
		return aiMessage(assistant.ErrorMessage)
	}

	reply := assistant.ParseReply(raw)
	if reply.Kind != assistant.KindAction {
		return aiMessage(reply.Text)
	}
	return aiMessage(s.createTask(ctx, reply.Action))
}

func (s *AssistantSession) createTask(ctx context.Context, a *assistant.Action) string {
	ctx, span := otel.StartActionSpan(ctx, a.Name)
	req := task.CreateRequest{Title: a.Title, Content: a.Content}
	if a.DueDate != "" {
		req.DueDate = assistant.ResolveDate(a.DueDate, s.now())
	}

	t, err := s.tasks.Create(ctx, req)
	otel.EndSpan(span, err)
	s.metrics.Action(ctx, a.Name, err)
	if err != nil {
		slog.WarnContext(ctx, "assistant create_task failed", "session_id", s.id, "error", err)
		return assistant.FailedMessage(err)
	}
	return assistant.CreatedMessage(t)
}

func aiMessage(content string) assistant.Message {
	return assistant.Message{Role: assistant.RoleAI, Content: content}
}

// append adds m to the history. It reports false once the session is closed.
func (s *AssistantSession) append(ctx context.Context, m assistant.Message) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages, m)
	s.lastActive = s.now()
	s.mu.Unlock()

	if s.onMessage != nil {
		s.onMessage(ctx, m)
	}
	return true
}

// Messages returns a copy of the conversation history.
func (s *AssistantSession) Messages() []assistant.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]assistant.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Busy reports whether a submission is in flight.
func (s *AssistantSession) Busy() bool {
	return len(s.slot) > 0
}

// IdleSince reports the time of the last appended message.
func (s *AssistantSession) IdleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Close ends the session. An in-flight submission completes but its reply is discarded.
func (s *AssistantSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// closeIfIdle closes the session if no submission holds the slot and the last
// message is older than cutoff. The slot is held while deciding, so a Submit
// either runs to completion first or is rejected before touching history.
func (s *AssistantSession) closeIfIdle(cutoff time.Time) bool {
	select {
	case s.slot <- struct{}{}:
	default:
		return false
	}
	defer func() { <-s.slot }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.lastActive.Before(cutoff) {
		return false
	}
	s.closed = true
	return true
}

// Closed reports whether Close was called.
func (s *AssistantSession) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SessionSnapshot is the serializable state of a session.
type SessionSnapshot struct {
	ID        string              `json:"id"`
	Messages  []assistant.Message `json:"messages"`
	Busy      bool                `json:"busy"`
	CreatedAt time.Time           `json:"created_at"`
}

// Snapshot returns the current state of the session.
func (s *AssistantSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:        s.id,
		Messages:  s.Messages(),
		Busy:      s.Busy(),
		CreatedAt: s.createdAt,
	}
}

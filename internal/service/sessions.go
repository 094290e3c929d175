package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/taskpad/internal/adapter/otel"
	"github.com/Strob0t/taskpad/internal/domain"
	"github.com/Strob0t/taskpad/internal/domain/assistant"
	"github.com/Strob0t/taskpad/internal/logger"
	"github.com/Strob0t/taskpad/internal/middleware"
	remote "github.com/Strob0t/taskpad/internal/port/assistant"
	"github.com/Strob0t/taskpad/internal/port/broadcast"
)

// SessionService owns the in-memory assistant sessions of all users.
type SessionService struct {
	remote  remote.Remote
	tasks   TaskBackend
	hub     broadcast.Broadcaster
	idle    time.Duration
	now     func() time.Time
	metrics *otel.Metrics

	mu       sync.Mutex
	sessions map[string]*AssistantSession
}

// NewSessionService creates a SessionService. hub may be nil. Sessions idle
// for longer than idle are removed by Reap.
func NewSessionService(r remote.Remote, tasks TaskBackend, hub broadcast.Broadcaster, idle time.Duration) *SessionService {
	return &SessionService{
		remote:   r,
		tasks:    tasks,
		hub:      hub,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*AssistantSession),
	}
}

// SetMetrics attaches metric instruments to sessions created afterwards.
func (s *SessionService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// Create opens a new session for the user in ctx.
func (s *SessionService) Create(ctx context.Context) *AssistantSession {
	id := uuid.NewString()
	userID := middleware.UserIDFromContext(ctx)

	opts := []SessionOption{WithClock(s.now), WithSessionMetrics(s.metrics)}
	if s.hub != nil {
		hub := s.hub
		opts = append(opts, WithMessageHook(func(ctx context.Context, m assistant.Message) {
			hub.BroadcastEvent(ctx, broadcast.EventAssistantMessage, broadcast.AssistantMessagePayload{SessionID: id, Message: m})
		}))
	}
	sess := NewAssistantSession(id, userID, s.remote, s.tasks, opts...)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	slog.InfoContext(ctx, "assistant session created", "session_id", id)
	return sess
}

// Get returns the caller's session. Sessions of other users read as not found.
func (s *SessionService) Get(ctx context.Context, id string) (*AssistantSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok || sess.UserID() != middleware.UserIDFromContext(ctx) {
		return nil, fmt.Errorf("assistant session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// Submit forwards text to the caller's session.
func (s *SessionService) Submit(ctx context.Context, id, text string) (assistant.Message, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return assistant.Message{}, err
	}
	return sess.Submit(logger.WithSessionID(ctx, id), text)
}

// Delete closes and removes the caller's session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.remove(sess)
	return nil
}

func (s *SessionService) remove(sess *AssistantSession) {
	sess.Close()
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Reap removes sessions that have been idle longer than the idle timeout.
// Busy sessions are kept. It returns the number removed.
func (s *SessionService) Reap() int {
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	candidates := make([]*AssistantSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.IdleSince().Before(cutoff) {
			candidates = append(candidates, sess)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, sess := range candidates {
		if !sess.closeIfIdle(cutoff) {
			continue
		}
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
		n++
	}
	return n
}

// RunReaper calls Reap every interval until ctx is done.
func (s *SessionService) RunReaper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Reap(); n > 0 {
				slog.Info("reaped idle assistant sessions", "count", n)
			}
		}
	}
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/taskpad/internal/domain"
	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/middleware"
	remote "github.com/Strob0t/taskpad/internal/port/assistant"
	"github.com/Strob0t/taskpad/internal/port/messagequeue"
)

// mockStore implements database.Store in memory, scoped by the user in ctx.
type mockStore struct {
	mu        sync.Mutex
	tasks     []task.Task
	users     []user.User
	nextID    int
	listCalls int
	listErr   error
	createErr error
}

func (m *mockStore) ListTasks(ctx context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	uid := middleware.UserIDFromContext(ctx)
	var out []task.Task
	for i := len(m.tasks) - 1; i >= 0; i-- {
		if m.tasks[i].UserID == uid {
			out = append(out, m.tasks[i])
		}
	}
	return out, nil
}

func (m *mockStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := middleware.UserIDFromContext(ctx)
	for i := range m.tasks {
		if m.tasks[i].ID == id && m.tasks[i].UserID == uid {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateTask(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	t.ID = fmt.Sprintf("t%d", m.nextID)
	t.UserID = middleware.UserIDFromContext(ctx)
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks = append(m.tasks, *t)
	return nil
}

func (m *mockStore) UpdateTask(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := middleware.UserIDFromContext(ctx)
	for i := range m.tasks {
		if m.tasks[i].ID == t.ID && m.tasks[i].UserID == uid {
			m.tasks[i] = *t
			return nil
		}
	}
	return fmt.Errorf("update task %s: %w", t.ID, domain.ErrNotFound)
}

func (m *mockStore) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := middleware.UserIDFromContext(ctx)
	for i := range m.tasks {
		if m.tasks[i].ID == id && m.tasks[i].UserID == uid {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete task %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Email == u.Email {
			return fmt.Errorf("create user: %w", domain.ErrConflict)
		}
	}
	m.users = append(m.users, *u)
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
	handlers     map[string]messagequeue.Handler
	publishErr   error
	disconnected bool
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handlers == nil {
		q.handlers = map[string]messagequeue.Handler{}
	}
	q.handlers[subject] = h
	return func() {
		q.mu.Lock()
		delete(q.handlers, subject)
		q.mu.Unlock()
	}, nil
}

func (q *mockQueue) handler(subject string) messagequeue.Handler {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handlers[subject]
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return !q.disconnected }

type hubEvent struct {
	userID  string
	event   string
	payload any
}

// mockHub records broadcast events.
type mockHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *mockHub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{middleware.UserIDFromContext(ctx), eventType, payload})
}

func (h *mockHub) snapshot() []hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hubEvent(nil), h.events...)
}

// mockRemote answers every prompt with reply, optionally blocking on gate.
type mockRemote struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []remote.Request
	gate     chan struct{}
	entered  chan struct{}
}

func (r *mockRemote) Ask(_ context.Context, req remote.Request) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	return r.reply, r.err
}

func (r *mockRemote) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// mockTasks implements TaskBackend.
type mockTasks struct {
	mu        sync.Mutex
	tasks     []task.Task
	created   []task.CreateRequest
	listErr   error
	createErr error
}

func (m *mockTasks) List(_ context.Context, view task.View) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return task.Filter(m.tasks, view), nil
}

func (m *mockTasks) Create(_ context.Context, req task.CreateRequest) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	due, err := req.Validate()
	if err != nil {
		return nil, err
	}
	t := task.Task{ID: fmt.Sprintf("t%d", len(m.created)), Title: req.Title, Content: req.Content, DueDate: due}
	m.tasks = append(m.tasks, t)
	return &t, nil
}

func sortedSubjects(q *mockQueue) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.published))
	for i, p := range q.published {
		out[i] = p.subject
	}
	sort.Strings(out)
	return out
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/taskpad/internal/domain/assistant"
	"github.com/Strob0t/taskpad/internal/domain/task"
)

var sessionNow = time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)

func newTestSession(r *mockRemote, tasks *mockTasks, opts ...SessionOption) *AssistantSession {
	opts = append([]SessionOption{WithClock(func() time.Time { return sessionNow })}, opts...)
	return NewAssistantSession("s1", "u1", r, tasks, opts...)
}

func TestAssistantSession_Welcome(t *testing.T) {
	sess := newTestSession(&mockRemote{}, &mockTasks{})
	msgs := sess.Messages()
	if len(msgs) != 1 || msgs[0] != assistant.Welcome() {
		t.Fatalf("expected only the welcome message, got %+v", msgs)
	}
	if sess.Busy() {
		t.Fatal("new session must not be busy")
	}
}

func TestAssistantSession_CreateTaskAction(t *testing.T) {
	r := &mockRemote{reply: "```json\n{\"action\": \"create_task\", \"title\": \"Buy milk\", \"due_date\": \"tomorrow\"}\n```"}
	tasks := &mockTasks{}
	sess := newTestSession(r, tasks)

	reply, err := sess.Submit(context.Background(), "Create a task to buy milk tomorrow")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(tasks.created) != 1 {
		t.Fatalf("expected exactly one create, got %d", len(tasks.created))
	}
	if tasks.created[0].Title != "Buy milk" {
		t.Fatalf("unexpected title %q", tasks.created[0].Title)
	}
	wantDue := sessionNow.AddDate(0, 0, 1).Format(time.RFC3339)
	if tasks.created[0].DueDate != wantDue {
		t.Fatalf("due date = %q, want %q", tasks.created[0].DueDate, wantDue)
	}

	msgs := sess.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected welcome, user and ai messages, got %+v", msgs)
	}
	if msgs[1].Role != assistant.RoleUser || msgs[1].Content != "Create a task to buy milk tomorrow" {
		t.Fatalf("unexpected user message %+v", msgs[1])
	}
	if msgs[2] != reply || reply.Role != assistant.RoleAI {
		t.Fatalf("reply must be the appended ai message, got %+v vs %+v", reply, msgs[2])
	}
	if reply.Content != `Task created: "Buy milk" (due Feb 1, 2024)` {
		t.Fatalf("unexpected confirmation %q", reply.Content)
	}
}

func TestAssistantSession_PlainTextReply(t *testing.T) {
	r := &mockRemote{reply: "You have nothing due today."}
	tasks := &mockTasks{}
	sess := newTestSession(r, tasks)

	reply, err := sess.Submit(context.Background(), "what's due?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Content != "You have nothing due today." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if len(tasks.created) != 0 {
		t.Fatal("plain text must not create tasks")
	}
}

func TestAssistantSession_SendsTaskContext(t *testing.T) {
	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	r := &mockRemote{reply: "ok"}
	tasks := &mockTasks{tasks: []task.Task{{Title: "Buy milk", DueDate: &due}, {Title: "Call mom", IsDone: true}}}
	sess := newTestSession(r, tasks)

	if _, err := sess.Submit(context.Background(), "summarize"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(r.requests) != 1 {
		t.Fatalf("expected 1 remote call, got %d", len(r.requests))
	}
	req := r.requests[0]
	if req.Prompt != "summarize" {
		t.Fatalf("unexpected prompt %q", req.Prompt)
	}
	want := "User's Current Tasks:\n" +
		"1. Buy milk (Status: Pending, Due: 2024-02-01T00:00:00Z)\n" +
		"2. Call mom (Status: Done, Due: No Date)"
	if req.Context != want {
		t.Fatalf("context = %q, want %q", req.Context, want)
	}

	empty := &mockRemote{reply: "ok"}
	if _, err := newTestSession(empty, &mockTasks{}).Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if empty.requests[0].Context != assistant.NoTasksContext {
		t.Fatalf("unexpected empty context %q", empty.requests[0].Context)
	}
}

func TestAssistantSession_EmptyPromptIsNoop(t *testing.T) {
	r := &mockRemote{reply: "ok"}
	sess := newTestSession(r, &mockTasks{})

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := sess.Submit(context.Background(), text); !errors.Is(err, ErrEmptyPrompt) {
			t.Fatalf("Submit(%q): expected ErrEmptyPrompt, got %v", text, err)
		}
	}
	if len(sess.Messages()) != 1 || r.calls() != 0 {
		t.Fatal("empty prompts must not change history or call the remote")
	}
}

func TestAssistantSession_BusyIsNoop(t *testing.T) {
	r := &mockRemote{reply: "done", gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	sess := newTestSession(r, &mockTasks{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := sess.Submit(context.Background(), "first"); err != nil {
			t.Errorf("first Submit: %v", err)
		}
	}()

	<-r.entered
	if !sess.Busy() {
		t.Fatal("session must be busy while the remote call is in flight")
	}
	if _, err := sess.Submit(context.Background(), "second"); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	if got := len(sess.Messages()); got != 2 {
		t.Fatalf("busy submission must not be recorded, history has %d entries", got)
	}

	close(r.gate)
	wg.Wait()

	msgs := sess.Messages()
	if len(msgs) != 3 || msgs[2].Content != "done" {
		t.Fatalf("unexpected history %+v", msgs)
	}
	if r.calls() != 1 {
		t.Fatalf("expected exactly one remote call, got %d", r.calls())
	}
	if sess.Busy() {
		t.Fatal("session must be idle after the reply")
	}
}

func TestAssistantSession_RemoteErrorBecomesMessage(t *testing.T) {
	sess := newTestSession(&mockRemote{err: errors.New("connection refused")}, &mockTasks{})

	reply, err := sess.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("remote failures must not surface as errors: %v", err)
	}
	if reply.Content != assistant.ErrorMessage || reply.Role != assistant.RoleAI {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(sess.Messages()) != 3 {
		t.Fatal("expected user and error messages appended")
	}
}

func TestAssistantSession_ListErrorBecomesMessage(t *testing.T) {
	r := &mockRemote{reply: "ok"}
	sess := newTestSession(r, &mockTasks{listErr: errors.New("db down")})

	reply, err := sess.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Content != assistant.ErrorMessage {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if r.calls() != 0 {
		t.Fatal("remote must not be called without task context")
	}
}

func TestAssistantSession_ActionFailure(t *testing.T) {
	r := &mockRemote{reply: `{"action": "create_task", "title": "Buy milk"}`}
	tasks := &mockTasks{createErr: errors.New("store unavailable")}
	sess := newTestSession(r, tasks)

	reply, err := sess.Submit(context.Background(), "add buy milk")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.HasPrefix(reply.Content, "Failed to create task:") || !strings.Contains(reply.Content, "store unavailable") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if len(sess.Messages()) != 3 {
		t.Fatal("exactly one ai message must follow the user message")
	}
}

func TestAssistantSession_UnresolvedDatePassedThrough(t *testing.T) {
	r := &mockRemote{reply: `{"action": "create_task", "title": "Report", "due_date": "2024-03-01"}`}
	tasks := &mockTasks{}
	sess := newTestSession(r, tasks)

	if _, err := sess.Submit(context.Background(), "report due march 1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if tasks.created[0].DueDate != "2024-03-01" {
		t.Fatalf("absolute dates must pass through, got %q", tasks.created[0].DueDate)
	}
}

func TestAssistantSession_CanceledContextStillCompletes(t *testing.T) {
	r := &mockRemote{reply: "ok"}
	sess := newTestSession(r, &mockTasks{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply, err := sess.Submit(ctx, "hello")
	if err != nil || reply.Content != "ok" {
		t.Fatalf("Submit = %+v, %v", reply, err)
	}
}

func TestAssistantSession_MessageHook(t *testing.T) {
	var mu sync.Mutex
	var seen []assistant.Message
	hook := WithMessageHook(func(_ context.Context, m assistant.Message) {
		mu.Lock()
		seen = append(seen, m)
		mu.Unlock()
	})
	sess := newTestSession(&mockRemote{reply: "hi there"}, &mockTasks{}, hook)

	if _, err := sess.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(seen) != 2 || seen[0].Role != assistant.RoleUser || seen[1].Content != "hi there" {
		t.Fatalf("unexpected hook calls %+v", seen)
	}
}

func TestAssistantSession_ClosedRejects(t *testing.T) {
	sess := newTestSession(&mockRemote{reply: "ok"}, &mockTasks{})
	sess.Close()
	if !sess.Closed() {
		t.Fatal("expected closed")
	}
	if _, err := sess.Submit(context.Background(), "hello"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if len(sess.Messages()) != 1 {
		t.Fatal("closed session must not record messages")
	}
}

func TestAssistantSession_Snapshot(t *testing.T) {
	sess := newTestSession(&mockRemote{}, &mockTasks{})
	snap := sess.Snapshot()
	if snap.ID != "s1" || snap.Busy || !snap.CreatedAt.Equal(sessionNow) || len(snap.Messages) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/logger"
	"github.com/Strob0t/taskpad/internal/port/messagequeue"
)

// fakeMsg implements the parts of jetstream.Msg that handle uses.
type fakeMsg struct {
	jetstream.Msg

	subject   string
	data      []byte
	headers   nats.Header
	delivered uint64

	acked    bool
	nakDelay time.Duration
	naked    bool
}

func (m *fakeMsg) Subject() string      { return m.subject }
func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) Headers() nats.Header { return m.headers }
func (m *fakeMsg) Ack() error           { m.acked = true; return nil }
func (m *fakeMsg) Nak() error           { m.naked = true; return nil }

func (m *fakeMsg) NakWithDelay(d time.Duration) error {
	m.naked, m.nakDelay = true, d
	return nil
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.delivered}, nil
}

// offlineQueue records what would be published.
func offlineQueue() (*Queue, *[]*nats.Msg) {
	var sent []*nats.Msg
	q := &Queue{retryDelay: 100 * time.Millisecond}
	q.publishMsg = func(_ context.Context, msg *nats.Msg) error {
		sent = append(sent, msg)
		return nil
	}
	return q, &sent
}

func createdPayload(t *testing.T, taskID string) []byte {
	t.Helper()
	data, err := json.Marshal(messagequeue.TaskEventPayload{
		TaskID: taskID,
		UserID: "u1",
		Task:   &task.Task{ID: taskID, UserID: "u1", Title: "Buy milk"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestPublishCarriesRequestID(t *testing.T) {
	q, sent := offlineQueue()
	ctx := logger.WithRequestID(context.Background(), "req-9")

	if err := q.Publish(ctx, messagequeue.SubjectTaskCreated, createdPayload(t, "t1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(*sent))
	}
	if got := (*sent)[0].Header.Get(headerRequestID); got != "req-9" {
		t.Fatalf("request id header = %q", got)
	}
}

func TestPublishRejectsInvalidPayload(t *testing.T) {
	q, sent := offlineQueue()
	err := q.Publish(context.Background(), messagequeue.SubjectTaskCreated, []byte(`{"task_id":"x"}`))
	if err == nil {
		t.Fatal("expected schema error")
	}
	if len(*sent) != 0 {
		t.Fatal("invalid payload must not be sent")
	}
}

func TestHandleAcksOnSuccess(t *testing.T) {
	q, sent := offlineQueue()
	msg := &fakeMsg{
		subject:   messagequeue.SubjectTaskCreated,
		data:      createdPayload(t, "t1"),
		headers:   nats.Header{headerRequestID: []string{"req-1"}},
		delivered: 1,
	}

	var gotRequestID string
	q.handle(msg, func(ctx context.Context, _ string, _ []byte) error {
		gotRequestID = logger.RequestID(ctx)
		return nil
	})

	if !msg.acked || msg.naked || len(*sent) != 0 {
		t.Fatalf("unexpected outcome: acked=%v naked=%v sent=%d", msg.acked, msg.naked, len(*sent))
	}
	if gotRequestID != "req-1" {
		t.Fatalf("handler ctx request id = %q", gotRequestID)
	}
}

func TestHandleRetriesWithBackoff(t *testing.T) {
	q, sent := offlineQueue()
	fail := func(context.Context, string, []byte) error { return errors.New("hub down") }

	for delivered, want := range map[uint64]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 400 * time.Millisecond} {
		msg := &fakeMsg{subject: messagequeue.SubjectTaskCreated, data: createdPayload(t, "t1"), headers: nats.Header{}, delivered: delivered}
		q.handle(msg, fail)
		if !msg.naked || msg.acked || msg.nakDelay != want {
			t.Errorf("delivery %d: naked=%v acked=%v delay=%v, want delay %v", delivered, msg.naked, msg.acked, msg.nakDelay, want)
		}
	}
	if len(*sent) != 0 {
		t.Fatalf("retries must not touch the DLQ, sent %d", len(*sent))
	}
}

func TestHandleDeadLettersAfterLastDelivery(t *testing.T) {
	q, sent := offlineQueue()
	msg := &fakeMsg{subject: messagequeue.SubjectTaskUpdated, data: createdPayload(t, "t1"), headers: nats.Header{}, delivered: maxDeliveries}

	q.handle(msg, func(context.Context, string, []byte) error { return errors.New("hub down") })

	if !msg.acked {
		t.Fatal("dead-lettered message must be acked on the source subject")
	}
	if len(*sent) != 1 || (*sent)[0].Subject != dlqPrefix+messagequeue.SubjectTaskUpdated {
		t.Fatalf("expected one DLQ message, got %+v", *sent)
	}
	if (*sent)[0].Header.Get(headerDLQReason) != "hub down" {
		t.Fatalf("reason header = %q", (*sent)[0].Header.Get(headerDLQReason))
	}
}

func TestHandleInvalidGoesStraightToDLQ(t *testing.T) {
	q, sent := offlineQueue()
	msg := &fakeMsg{subject: messagequeue.SubjectTaskDeleted, data: []byte(`{"task_id":"x"}`), headers: nats.Header{}, delivered: 1}

	called := false
	q.handle(msg, func(context.Context, string, []byte) error { called = true; return nil })

	if called {
		t.Fatal("handler must not see invalid payloads")
	}
	if !msg.acked || len(*sent) != 1 {
		t.Fatalf("expected ack and DLQ publish, acked=%v sent=%d", msg.acked, len(*sent))
	}
}

func TestHandleNaksWhenDLQPublishFails(t *testing.T) {
	q := &Queue{publishMsg: func(context.Context, *nats.Msg) error { return errors.New("no stream") }}
	msg := &fakeMsg{subject: messagequeue.SubjectTaskCreated, data: []byte(`{}`), headers: nats.Header{}, delivered: 1}

	q.handle(msg, func(context.Context, string, []byte) error { return nil })

	if msg.acked || !msg.naked {
		t.Fatalf("expected nak when the DLQ is unreachable, acked=%v naked=%v", msg.acked, msg.naked)
	}
}

func TestBackoffCapped(t *testing.T) {
	q := &Queue{retryDelay: time.Second}
	if got := q.backoff(1); got != time.Second {
		t.Fatalf("backoff(1) = %v", got)
	}
	if got := q.backoff(10); got != maxRetryDelay {
		t.Fatalf("backoff(10) = %v, want cap %v", got, maxRetryDelay)
	}
}

// --- against a live server ---

func testConnect(t *testing.T) *Queue {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	q, err := Connect(context.Background(), url, WithRetryDelay(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// uniqueSubject returns a subject the TASKPAD stream captures.
func uniqueSubject(t *testing.T) string {
	return "tasks.test." + t.Name()
}

func TestQueue_TaskEventRoundTrip(t *testing.T) {
	q := testConnect(t)
	ctx := logger.WithRequestID(context.Background(), "req-live")
	subject := uniqueSubject(t)

	type delivery struct {
		requestID string
		payload   messagequeue.TaskEventPayload
	}
	got := make(chan delivery, 1)
	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.TaskEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		got <- delivery{requestID: logger.RequestID(ctx), payload: p}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(ctx, subject, createdPayload(t, "t-live")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case d := <-got:
		if d.payload.TaskID != "t-live" || d.payload.Task == nil || d.payload.Task.Title != "Buy milk" {
			t.Fatalf("unexpected payload %+v", d.payload)
		}
		if d.requestID != "req-live" {
			t.Fatalf("request id = %q", d.requestID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestQueue_FailingHandlerEndsInDLQ(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()
	subject := uniqueSubject(t)

	dlq, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: dlqPrefix + subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("DLQ consumer: %v", err)
	}
	parked := make(chan jetstream.Msg, 1)
	dlqSub, err := dlq.Consume(func(m jetstream.Msg) {
		_ = m.Ack()
		select {
		case parked <- m:
		default:
		}
	})
	if err != nil {
		t.Fatalf("consume DLQ: %v", err)
	}
	defer dlqSub.Stop()

	var (
		mu       sync.Mutex
		attempts int
	)
	stop, err := q.Subscribe(ctx, subject, func(context.Context, string, []byte) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("always fails")
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(ctx, subject, createdPayload(t, "t-dlq")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-parked:
		if m.Headers().Get(headerDLQReason) != "always fails" {
			t.Errorf("reason = %q", m.Headers().Get(headerDLQReason))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for DLQ message")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != maxDeliveries {
		t.Errorf("handler ran %d times, want %d", attempts, maxDeliveries)
	}
}

func TestQueue_KeyValue(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "test-kv-"+t.Name(), 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	if _, err := kv.Put(ctx, "list.u1", []byte("[]")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "list.u1")
	if err != nil || string(entry.Value()) != "[]" {
		t.Fatalf("Get = %v, %v", entry, err)
	}
	if err := kv.Delete(ctx, "list.u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "list.u1"); !errors.Is(err, jetstream.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
	if !q.IsConnected() {
		t.Fatal("IsConnected() = false on a live queue")
	}
}

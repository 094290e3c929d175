package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes buffered records.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// errorWait is how long an error record may wait for buffer space.
const errorWait = 50 * time.Millisecond

// pending carries the derived handler along so WithAttrs/WithGroup output
// is preserved once the record is written.
type pending struct {
	h   slog.Handler
	rec slog.Record
}

type queue struct {
	ch      chan pending
	wg      sync.WaitGroup
	mu      sync.RWMutex // held for reading while sending on ch
	closed  bool
	once    sync.Once
	dropped atomic.Int64
	root    slog.Handler
}

// AsyncHandler writes records from background workers. Below error level a
// full buffer drops the record; error records wait up to errorWait first.
// Handlers derived through WithAttrs or WithGroup share the buffer.
type AsyncHandler struct {
	inner slog.Handler
	q     *queue
}

func NewAsyncHandler(inner slog.Handler, size, workers int) *AsyncHandler {
	q := &queue{ch: make(chan pending, size), root: inner}
	for range max(workers, 1) {
		q.wg.Add(1)
		go q.run()
	}
	return &AsyncHandler{inner: inner, q: q}
}

func (q *queue) run() {
	defer q.wg.Done()
	for p := range q.ch {
		_ = p.h.Handle(context.Background(), p.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	q := h.q
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return nil
	}

	p := pending{h: h.inner, rec: rec.Clone()}
	select {
	case q.ch <- p:
		return nil
	default:
	}
	if rec.Level >= slog.LevelError {
		t := time.NewTimer(errorWait)
		defer t.Stop()
		select {
		case q.ch <- p:
			return nil
		case <-t.C:
		}
	}
	q.dropped.Add(1)
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// DroppedCount returns how many records were discarded.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.q.dropped.Load()
}

// Close waits for buffered records to be written. If any were dropped, a
// final warning with the count is written synchronously. Later calls are
// no-ops and later records are counted as dropped.
func (h *AsyncHandler) Close() {
	q := h.q
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
		q.wg.Wait()

		if n := q.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
			rec.AddAttrs(slog.Int64("count", n))
			_ = q.root.Handle(context.Background(), rec)
		}
	})
}

// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/taskpad/internal/logger"
	"github.com/Strob0t/taskpad/internal/port/messagequeue"
)

const (
	streamName = "TASKPAD"
	dlqPrefix  = "dlq."

	headerRequestID = "X-Request-ID"
	headerDLQReason = "Dlq-Reason"

	// maxDeliveries counts the first delivery; after that many failed
	// attempts a message is parked on the DLQ.
	maxDeliveries = 4
	maxRetryDelay = 10 * time.Second
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream

	retryDelay time.Duration
	streamAge  time.Duration
	publishMsg func(ctx context.Context, msg *nats.Msg) error
}

// Option configures a Queue.
type Option func(*Queue)

// WithRetryDelay sets the base delay of the exponential redelivery backoff.
func WithRetryDelay(d time.Duration) Option {
	return func(q *Queue) { q.retryDelay = d }
}

// WithStreamMaxAge sets how long task events are retained.
func WithStreamMaxAge(d time.Duration) Option {
	return func(q *Queue) { q.streamAge = d }
}

// Connect dials NATS and ensures the TASKPAD stream exists.
func Connect(ctx context.Context, url string, opts ...Option) (*Queue, error) {
	q := &Queue{retryDelay: time.Second, streamAge: 24 * time.Hour}
	for _, opt := range opts {
		opt(q)
	}

	nc, err := nats.Connect(url,
		nats.Name("taskpad"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"tasks.>", dlqPrefix + ">"},
		MaxAge:   q.streamAge,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	q.nc, q.js = nc, js
	q.publishMsg = func(ctx context.Context, msg *nats.Msg) error {
		_, err := js.PublishMsg(ctx, msg)
		return err
	}
	slog.Info("nats connected", "url", url, "stream", streamName)
	return q, nil
}

// Publish validates data against the subject's schema and sends it.
// The request ID in ctx travels as a header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if err := q.publishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers new messages on subject to handler. A failed handler
// gets the message again with exponential backoff; invalid payloads and
// messages that fail maxDeliveries times are moved to the DLQ.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		MaxDeliver:    maxDeliveries + 1, // the DLQ move happens on the last one
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}
	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	ctx := context.Background()
	if id := msg.Headers().Get(headerRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	subject := msg.Subject()

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.WarnContext(ctx, "invalid message", "subject", subject, "error", err)
		q.moveToDLQ(ctx, msg, err)
		return
	}

	err := handler(ctx, subject, msg.Data())
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			slog.ErrorContext(ctx, "nats ack failed", "error", ackErr)
		}
		return
	}

	delivered := deliveries(msg)
	slog.ErrorContext(ctx, "message handler failed", "subject", subject, "delivery", delivered, "error", err)
	if delivered >= maxDeliveries {
		q.moveToDLQ(ctx, msg, err)
		return
	}
	if nakErr := msg.NakWithDelay(q.backoff(delivered)); nakErr != nil {
		slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
	}
}

// backoff doubles the base delay per delivery, capped at maxRetryDelay.
func (q *Queue) backoff(delivered int) time.Duration {
	d := q.retryDelay
	for i := 1; i < delivered && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func deliveries(msg jetstream.Msg) int {
	md, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return int(md.NumDelivered)
}

func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, reason error) {
	dlq := nats.NewMsg(dlqPrefix + msg.Subject())
	dlq.Data = msg.Data()
	for k, v := range msg.Headers() {
		dlq.Header[k] = v
	}
	dlq.Header.Set(headerDLQReason, reason.Error())

	if err := q.publishMsg(ctx, dlq); err != nil {
		slog.ErrorContext(ctx, "nats dlq publish failed", "subject", dlq.Subject, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// KeyValue returns (creating if needed) a KV bucket whose entries expire after ttl.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain flushes subscriptions and closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}

// Package messagequeue defines the message queue port and the task event
// subjects published on it.
package messagequeue

import "context"

// Handler processes one delivered message. Returning an error leaves the
// message unacknowledged so the broker redelivers it.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue publishes and subscribes to subjects.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe registers handler on subject. The returned func removes it.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)
	// Drain flushes pending deliveries and closes the connection.
	Drain() error
	Close() error
	IsConnected() bool
}

// Subjects for task lifecycle events.
const (
	SubjectTaskCreated = "tasks.created"
	SubjectTaskUpdated = "tasks.updated"
	SubjectTaskDeleted = "tasks.deleted"

	// SubjectTaskAll matches every task subject.
	SubjectTaskAll = "tasks.>"
)

// IsTaskSubject reports whether subject is one of the concrete task subjects.
func IsTaskSubject(subject string) bool {
	switch subject {
	case SubjectTaskCreated, SubjectTaskUpdated, SubjectTaskDeleted:
		return true
	}
	return false
}

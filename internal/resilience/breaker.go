// Package resilience protects outbound calls to the language-model proxy.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling out while the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of a Breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after maxFailures consecutive failures and rejects calls for
// openFor. The first call after that is a probe; while it runs other calls
// are still rejected. A successful probe closes the circuit, a failed one
// reopens it.
type Breaker struct {
	maxFailures int
	openFor     time.Duration
	isFailure   func(error) bool
	onChange    func(from, to State)
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureFilter decides which errors count against the remote. Errors
// it rejects pass through without changing the failure count.
func WithFailureFilter(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// WithStateChange calls fn after every transition, outside the lock.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func NewBreaker(maxFailures int, openFor time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		maxFailures: max(maxFailures, 1),
		openFor:     openFor,
		isFailure:   func(error) bool { return true },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call runs fn if the circuit allows it. A call that ended because the
// caller's ctx did says nothing about the remote and is not counted.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, ok := b.acquire()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	from := b.state
	if probe {
		b.probing = false
	}
	switch {
	case err == nil:
		b.failures = 0
		b.state = Closed
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
	case !b.isFailure(err):
		if probe {
			b.state = Closed
			b.failures = 0
		}
	default:
		b.failures++
		if b.state == HalfOpen || b.failures >= b.maxFailures {
			b.state = Open
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

// State reports the current position. An open circuit whose wait is over
// reads as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.openFor {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) acquire() (probe, ok bool) {
	b.mu.Lock()
	from := b.state
	switch {
	case b.state == Closed:
	case b.state == Open && b.now().Sub(b.openedAt) < b.openFor:
	case b.probing:
	default:
		b.state, b.probing, probe = HalfOpen, true, true
	}
	ok = b.state == Closed || probe
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return probe, ok
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

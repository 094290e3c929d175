package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxBuckets bounds memory when many distinct clients show up at once.
const maxBuckets = 100000

// CostFunc returns how many tokens a request consumes.
type CostFunc func(r *http.Request) int

// RateLimiter is a token bucket per caller. Authenticated requests are keyed
// by user ID, anonymous ones by client IP.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst float64
	cost  CostFunc
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// RateOption configures a RateLimiter.
type RateOption func(*RateLimiter)

// WithCost charges requests by fn instead of one token each.
func WithCost(fn CostFunc) RateOption {
	return func(rl *RateLimiter) { rl.cost = fn }
}

// WithRateClock replaces time.Now.
func WithRateClock(now func() time.Time) RateOption {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter refills rate tokens per second up to burst.
func NewRateLimiter(rate float64, burst int, opts ...RateOption) *RateLimiter {
	rl := &RateLimiter{
		rate:    rate,
		burst:   float64(burst),
		cost:    func(*http.Request) int { return 1 },
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Handler enforces the limit. It must run after Auth to see the user.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.take(limitKey(r), rl.cost(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(int(rl.burst)))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take removes cost tokens from key's bucket. On refusal it returns how long
// until enough tokens are available; nothing is deducted.
func (rl *RateLimiter) take(key string, cost int) (remaining int, wait time.Duration, ok bool) {
	need := math.Min(float64(cost), rl.burst)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		if len(rl.buckets) >= maxBuckets {
			return 0, rl.refillTime(1), false
		}
		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[key] = b
	}

	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now

	if b.tokens < need {
		return int(b.tokens), rl.refillTime(need - b.tokens), false
	}
	b.tokens -= need
	return int(b.tokens), 0, true
}

func (rl *RateLimiter) refillTime(tokens float64) time.Duration {
	return time.Duration(tokens / rl.rate * float64(time.Second))
}

// Run drops buckets idle for longer than maxIdle every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.cleanup(maxIdle)
		}
	}
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	cutoff := rl.now().Add(-maxIdle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func limitKey(r *http.Request) string {
	if u := UserFromContext(r.Context()); u != nil && u.ID != "" {
		return "user:" + u.ID
	}
	return "ip:" + clientIP(r)
}

// clientIP is the host part of RemoteAddr. chi's RealIP runs earlier and
// rewrites RemoteAddr from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

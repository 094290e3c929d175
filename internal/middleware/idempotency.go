package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Strob0t/taskpad/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"

	maxIdempotencyKey  = 255
	maxIdempotencyBody = 1 << 20
)

// replayHeaders are the response headers stored with a replay. Per-request
// headers such as rate-limit counters or the request ID are not.
var replayHeaders = []string{"Content-Type", "Location", "Deprecation", "Sunset", "Link"}

type storedResponse struct {
	Fingerprint string              `json:"fingerprint"`
	Status      int                 `json:"status"`
	Header      map[string][]string `json:"header,omitempty"`
	Body        []byte              `json:"body"`
}

type idempotency struct {
	cache cache.Cache
	ttl   time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Idempotency replays the stored 2xx response when a mutating request is
// retried with the same Idempotency-Key. Keys are per user and route, so it
// must run after Auth. Reusing a key with a different body is a 422, and a
// retry that arrives while the first attempt is still running is a 409.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	m := &idempotency{cache: c, ttl: ttl, inflight: make(map[string]struct{})}
	return m.wrap
}

func (m *idempotency) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerIdempotencyKey)
		if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			writeJSONError(w, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBody+1))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "could not read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)
		fingerprint := hex.EncodeToString(sum[:])

		ctx := r.Context()
		cacheKey := UserIDFromContext(ctx) + ":" + r.Method + ":" + r.URL.Path + ":" + key

		if stored, ok := m.lookup(r, cacheKey); ok {
			if stored.Fingerprint != fingerprint {
				writeJSONError(w, http.StatusUnprocessableEntity, "Idempotency-Key was used with a different request")
				return
			}
			stored.replay(w)
			return
		}

		if !m.begin(cacheKey) {
			writeJSONError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
			return
		}
		defer m.end(cacheKey)

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.statusCode < 200 || rec.statusCode >= 300 || rec.overflow {
			return
		}
		stored := storedResponse{
			Fingerprint: fingerprint,
			Status:      rec.statusCode,
			Header:      pickHeaders(w.Header()),
			Body:        rec.body.Bytes(),
		}
		data, err := json.Marshal(stored)
		if err != nil {
			return
		}
		if err := m.cache.Set(ctx, cacheKey, data, m.ttl); err != nil {
			slog.WarnContext(ctx, "idempotency: store failed", "key", key, "error", err)
		}
	})
}

func (m *idempotency) lookup(r *http.Request, cacheKey string) (storedResponse, bool) {
	var stored storedResponse
	data, ok, err := m.cache.Get(r.Context(), cacheKey)
	if err != nil || !ok {
		return stored, false
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.WarnContext(r.Context(), "idempotency: dropping corrupt entry", "error", err)
		_ = m.cache.Delete(r.Context(), cacheKey)
		return stored, false
	}
	return stored, true
}

func (m *idempotency) begin(cacheKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[cacheKey]; busy {
		return false
	}
	m.inflight[cacheKey] = struct{}{}
	return true
}

func (m *idempotency) end(cacheKey string) {
	m.mu.Lock()
	delete(m.inflight, cacheKey)
	m.mu.Unlock()
}

func (s storedResponse) replay(w http.ResponseWriter) {
	for k, vals := range s.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func pickHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string)
	for _, name := range replayHeaders {
		if vals := h.Values(name); len(vals) > 0 {
			out[name] = append([]string(nil), vals...)
		}
	}
	return out
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// responseRecorder tees the response so it can be stored. Bodies above
// maxIdempotencyBody are passed through but not kept.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	overflow   bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.body.Len()+len(b) > maxIdempotencyBody {
			r.overflow = true
			r.body.Reset()
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

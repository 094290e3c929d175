package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/taskpad/internal/middleware"
)

// RouteOptions configures optional route behavior.
type RouteOptions struct {
	// Idempotency wraps POST endpoints. Nil disables replay protection.
	Idempotency func(http.Handler) http.Handler
	// LegacySunset is advertised on the unversioned /llm/ask route.
	LegacySunset time.Time
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	idem := opts.Idempotency
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", h.Version)

		// Auth
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Get("/auth/me", h.Me)

		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.With(idem).Post("/tasks", h.CreateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Put("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)

		// Calendar
		r.Get("/calendar/events", h.CalendarEvents)

		// LLM proxy
		r.Post("/llm/ask", h.AskLLM)
		r.Get("/llm/health", h.LLMHealth)

		// Assistant sessions
		r.With(idem).Post("/assistant/sessions", h.CreateSession)
		r.Get("/assistant/sessions/{id}", h.GetSession)
		r.With(idem).Post("/assistant/sessions/{id}/messages", h.SubmitMessage)
		r.Delete("/assistant/sessions/{id}", h.DeleteSession)
	})

	// Frontends built against the unversioned backend post here.
	r.With(middleware.Deprecation(opts.LegacySunset, "/api/v1/llm/ask")).
		Post("/llm/ask", h.AskLLM)
}

// ModelCost charges weight tokens for POSTs that end in a model call and one
// token for everything else.
func ModelCost(weight int) middleware.CostFunc {
	return func(r *http.Request) int {
		if r.Method != http.MethodPost {
			return 1
		}
		p := r.URL.Path
		if p == "/llm/ask" || p == "/api/v1/llm/ask" ||
			(strings.HasPrefix(p, "/api/v1/assistant/sessions/") && strings.HasSuffix(p, "/messages")) {
			return weight
		}
		return 1
	}
}

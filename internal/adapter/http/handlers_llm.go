package http

import (
	"log/slog"
	"net/http"

	"github.com/Strob0t/taskpad/internal/port/assistant"
)

// AskLLM handles POST /api/v1/llm/ask
func (h *Handlers) AskLLM(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assistant.Request](w, r)
	if !ok {
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	reply, err := h.LLM.Ask(r.Context(), req)
	if err != nil {
		slog.Error("llm ask failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assistant.Response{Response: reply})
}

// LLMHealth handles GET /api/v1/llm/health
func (h *Handlers) LLMHealth(w http.ResponseWriter, r *http.Request) {
	if !h.LLM.Configured() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_configured"})
		return
	}
	healthy, err := h.LLM.Health(r.Context())
	if !healthy {
		if err != nil {
			slog.Warn("litellm health check failed", "error", err)
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

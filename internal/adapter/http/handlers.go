package http

import (
	"net/http"

	"github.com/Strob0t/taskpad/internal/service"
)

const apiVersion = "0.1.0"

// Handlers holds the services the HTTP handlers call into.
type Handlers struct {
	Tasks    *service.TaskService
	Auth     *service.AuthService
	LLM      *service.LLMService
	Sessions *service.SessionService
}

// Version handles GET /api/v1/
func (h *Handlers) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": apiVersion})
}

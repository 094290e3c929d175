package http

import (
	"log/slog"
	"net/http"

	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/middleware"
)

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r)
	if !ok {
		return
	}
	u, err := h.Auth.Register(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		slog.Debug("login failed", "email", req.Email, "error", err)
		writeDomainError(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if u.IsLocal() {
		writeJSON(w, http.StatusOK, u)
		return
	}

	full, err := h.Auth.GetUser(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, full)
}

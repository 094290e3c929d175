package http

import (
	"errors"
	"net/http"

	"github.com/Strob0t/taskpad/internal/service"
)

type submitRequest struct {
	Content string `json:"content"`
}

// CreateSession handles POST /api/v1/assistant/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.Sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// GetSession handles GET /api/v1/assistant/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "assistant session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// SubmitMessage handles POST /api/v1/assistant/sessions/{id}/messages
func (h *Handlers) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitRequest](w, r)
	if !ok {
		return
	}

	reply, err := h.Sessions.Submit(r.Context(), urlParam(r, "id"), req.Content)
	if errors.Is(err, service.ErrEmptyPrompt) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeDomainError(w, r, err, "assistant session not found")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// DeleteSession handles DELETE /api/v1/assistant/sessions/{id}
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, r, err, "assistant session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

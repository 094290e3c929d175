package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/taskpad/internal/domain"
	"github.com/Strob0t/taskpad/internal/service"
)

const maxRequestBodySize = 1 << 20

// readJSON decodes exactly one JSON value from the body. On failure it has
// already answered 400 or 413 and returns false.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	err := dec.Decode(&v)
	if err == nil && dec.More() {
		err = errTrailingData
	}

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return v, true
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is empty")
	default:
		writeError(w, http.StatusBadRequest, "malformed JSON body")
	}
	return v, false
}

var errTrailingData = errors.New("trailing data after JSON value")

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service and domain errors onto status codes.
// notFound is the message used for ErrNotFound.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var fe *domain.FieldError
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fe.Msg, Field: fe.Field})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, service.ErrSessionClosed):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, service.ErrSessionBusy):
		writeError(w, http.StatusConflict, "assistant is still answering the previous message")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError logs err with the request context and hides it from the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

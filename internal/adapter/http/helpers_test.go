package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/taskpad/internal/domain"
	"github.com/Strob0t/taskpad/internal/service"
)

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ok      bool
		status  int
		message string
	}{
		{"valid", `{"title":"milk"}`, true, 0, ""},
		{"empty", ``, false, http.StatusBadRequest, "request body is empty"},
		{"malformed", `{"title":`, false, http.StatusBadRequest, "malformed JSON body"},
		{"trailing value", `{"title":"a"} {"title":"b"}`, false, http.StatusBadRequest, "malformed JSON body"},
		{"too large", `{"title":"` + strings.Repeat("x", maxRequestBodySize) + `"}`, false, http.StatusRequestEntityTooLarge, "request body too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(tt.body))
			v, ok := readJSON[struct{ Title string }](w, r)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (body %q)", ok, tt.ok, w.Body.String())
			}
			if tt.ok {
				if v.Title != "milk" {
					t.Fatalf("decoded %+v", v)
				}
				return
			}
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var resp errorResponse
			_ = json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error != tt.message {
				t.Fatalf("error = %q, want %q", resp.Error, tt.message)
			}
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   errorResponse
	}{
		{"field", fmt.Errorf("create: %w", domain.Invalid("title", "title is required")), http.StatusBadRequest, errorResponse{Error: "title is required", Field: "title"}},
		{"bare validation", domain.ErrValidation, http.StatusBadRequest, errorResponse{Error: "invalid request"}},
		{"not found", fmt.Errorf("get task t1: %w", domain.ErrNotFound), http.StatusNotFound, errorResponse{Error: "task not found"}},
		{"closed session", service.ErrSessionClosed, http.StatusNotFound, errorResponse{Error: "task not found"}},
		{"conflict", domain.ErrConflict, http.StatusConflict, errorResponse{Error: "resource already exists"}},
		{"busy", service.ErrSessionBusy, http.StatusConflict, errorResponse{Error: "assistant is still answering the previous message"}},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}},
		{"other", errors.New("connection reset"), http.StatusInternalServerError, errorResponse{Error: "internal server error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t1", http.NoBody)
			writeDomainError(w, r, tt.err, "task not found")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var got errorResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("body = %+v, want %+v", got, tt.want)
			}
		})
	}
}

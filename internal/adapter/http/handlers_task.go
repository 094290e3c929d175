package http

import (
	"net/http"

	"github.com/Strob0t/taskpad/internal/domain/task"
)

// ListTasks handles GET /api/v1/tasks?view=all|active|history
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.List(r.Context(), task.ParseView(r.URL.Query().Get("view")))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTask handles PUT /api/v1/tasks/{id}
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.UpdateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CalendarEvents handles GET /api/v1/calendar/events
func (h *Handlers) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Tasks.Calendar(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

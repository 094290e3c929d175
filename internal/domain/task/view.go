package task

import "time"

// View selects which tasks a list returns.
type View string

const (
	ViewAll     View = "all"
	ViewActive  View = "active"
	ViewHistory View = "history"
)

// ParseView maps a query value to a View. Unknown values fall back to ViewAll.
func ParseView(s string) View {
	switch View(s) {
	case ViewActive, ViewHistory:
		return View(s)
	default:
		return ViewAll
	}
}

// Filter returns the tasks visible in the given view, preserving order.
func Filter(tasks []Task, v View) []Task {
	if v == ViewAll {
		return tasks
	}
	out := make([]Task, 0, len(tasks))
	for i := range tasks {
		done := tasks[i].IsDone
		if (v == ViewHistory && done) || (v == ViewActive && !done) {
			out = append(out, tasks[i])
		}
	}
	return out
}

// CalendarEvent is a task with a due date rendered as a calendar entry.
type CalendarEvent struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"allDay"`
}

// CalendarEvents converts every task that has a due date into a point-in-time event.
func CalendarEvents(tasks []Task) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(tasks))
	for i := range tasks {
		if tasks[i].DueDate == nil {
			continue
		}
		events = append(events, CalendarEvent{
			ID:    tasks[i].ID,
			Title: tasks[i].Title,
			Start: *tasks[i].DueDate,
			End:   *tasks[i].DueDate,
		})
	}
	return events
}

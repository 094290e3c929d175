package task

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/taskpad/internal/domain"
)

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantNil bool
		wantErr bool
	}{
		{input: "", wantNil: true},
		{input: "   ", wantNil: true},
		{input: "2024-02-01T00:00:00Z", want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{input: "2024-02-01T09:30:00+02:00", want: time.Date(2024, 2, 1, 7, 30, 0, 0, time.UTC)},
		{input: "2024-02-01T09:30:00.123456", want: time.Date(2024, 2, 1, 9, 30, 0, 123456000, time.UTC)},
		{input: "2024-02-01T09:30:00", want: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)},
		{input: "2024-02-01T09:30", want: time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)},
		{input: "2024-02-01", want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{input: "someday", wantErr: true},
		{input: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDueDate(tt.input)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if got == nil || !got.Equal(tt.want) {
				t.Fatalf("ParseDueDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCreateRequestValidate(t *testing.T) {
	req := CreateRequest{Title: "  Buy milk  ", DueDate: "2024-02-01"}
	due, err := req.Validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Title != "Buy milk" {
		t.Fatalf("expected trimmed title, got %q", req.Title)
	}
	if due == nil {
		t.Fatal("expected due date")
	}

	empty := CreateRequest{Title: "   "}
	_, err = empty.Validate()
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty title, got %v", err)
	}
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "title" {
		t.Fatalf("expected a title FieldError, got %#v", err)
	}
}

func TestUpdateRequestApply(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tk := Task{ID: "t1", Title: "Old", Content: "body", DueDate: &due}

	title := "New"
	done := true
	clear := ""
	req := UpdateRequest{Title: &title, IsDone: &done, DueDate: &clear}
	if err := req.Apply(&tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Title != "New" || !tk.IsDone {
		t.Fatalf("unexpected task after update: %+v", tk)
	}
	if tk.DueDate != nil {
		t.Fatalf("expected due date cleared, got %v", tk.DueDate)
	}
	if tk.Content != "body" {
		t.Fatalf("content must be untouched, got %q", tk.Content)
	}

	blank := " "
	if err := (&UpdateRequest{Title: &blank}).Apply(&tk); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	tasks := []Task{
		{ID: "a", IsDone: false},
		{ID: "b", IsDone: true},
		{ID: "c", IsDone: false},
	}

	if got := Filter(tasks, ViewAll); len(got) != 3 {
		t.Fatalf("all: expected 3, got %d", len(got))
	}
	active := Filter(tasks, ViewActive)
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "c" {
		t.Fatalf("active: unexpected %+v", active)
	}
	history := Filter(tasks, ViewHistory)
	if len(history) != 1 || history[0].ID != "b" {
		t.Fatalf("history: unexpected %+v", history)
	}
}

func TestParseView(t *testing.T) {
	if ParseView("history") != ViewHistory {
		t.Fatal("expected history view")
	}
	if ParseView("active") != ViewActive {
		t.Fatal("expected active view")
	}
	if ParseView("bogus") != ViewAll || ParseView("") != ViewAll {
		t.Fatal("expected fallback to all")
	}
}

func TestCalendarEvents(t *testing.T) {
	due := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	events := CalendarEvents([]Task{
		{ID: "a", Title: "no date"},
		{ID: "b", Title: "dentist", DueDate: &due},
	})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ID != "b" || !ev.Start.Equal(due) || !ev.End.Equal(due) || ev.AllDay {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

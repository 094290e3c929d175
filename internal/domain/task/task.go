// Package task defines the Task domain entity and its request types.
package task

import (
	"strings"
	"time"

	"github.com/Strob0t/taskpad/internal/domain"
)

// Task is a single to-do item owned by a user.
type Task struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content,omitempty"`
	IsDone    bool       `json:"is_done"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new task.
// DueDate is a timestamp string in any of the layouts accepted by ParseDueDate.
type CreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	IsDone  bool   `json:"is_done,omitempty"`
	DueDate string `json:"due_date,omitempty"`
}

// Validate trims the title and checks the request. It returns the parsed due date.
func (r *CreateRequest) Validate() (*time.Time, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return nil, domain.Invalid("title", "title is required")
	}
	if len(r.Title) > MaxTitleLength {
		return nil, domain.Invalid("title", "title too long (max %d chars)", MaxTitleLength)
	}
	return ParseDueDate(r.DueDate)
}

// UpdateRequest is a partial update. Nil fields are left unchanged;
// an empty DueDate clears the due date.
type UpdateRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	IsDone  *bool   `json:"is_done,omitempty"`
	DueDate *string `json:"due_date,omitempty"`
}

// Apply validates the request and merges it into t.
func (r *UpdateRequest) Apply(t *Task) error {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return domain.Invalid("title", "title must not be empty")
		}
		if len(title) > MaxTitleLength {
			return domain.Invalid("title", "title too long (max %d chars)", MaxTitleLength)
		}
		t.Title = title
	}
	if r.Content != nil {
		t.Content = *r.Content
	}
	if r.IsDone != nil {
		t.IsDone = *r.IsDone
	}
	if r.DueDate != nil {
		due, err := ParseDueDate(*r.DueDate)
		if err != nil {
			return err
		}
		t.DueDate = due
	}
	return nil
}

// MaxTitleLength bounds task titles.
const MaxTitleLength = 500

// dueDateLayouts are tried in order. Layouts without a zone are read as UTC.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an absolute timestamp. Empty input means "no due date".
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Invalid("due_date", "invalid due_date %q", s)
}

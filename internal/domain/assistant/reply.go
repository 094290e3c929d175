package assistant

import (
	"encoding/json"
	"strings"
)

// ActionCreateTask is the only action the assistant may perform.
const ActionCreateTask = "create_task"

// Kind classifies an assistant reply.
type Kind string

const (
	KindText   Kind = "text"
	KindAction Kind = "action"
)

// Action is a task mutation requested by the assistant. It lives only
// between parsing and execution.
type Action struct {
	Name    string `json:"action"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	DueDate string `json:"due_date,omitempty"`
}

// Reply is a classified assistant reply. Text is always the original reply.
type Reply struct {
	Kind   Kind
	Action *Action
	Text   string
}

type actionFields struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	DueDate string `json:"due_date"`
}

type payload struct {
	Action string `json:"action"`
	actionFields
	Parameters *actionFields `json:"parameters"`
}

// ParseReply looks for an action payload embedded in reply. The candidate is
// the single JSON value starting at the first '{'; text after it is ignored.
// Any decode failure, unknown action or missing title yields a text reply.
func ParseReply(reply string) Reply {
	text := Reply{Kind: KindText, Text: reply}

	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return text
	}

	var p payload
	if err := json.NewDecoder(strings.NewReader(reply[start:])).Decode(&p); err != nil {
		return text
	}
	if p.Action != ActionCreateTask {
		return text
	}

	a := Action{Name: p.Action, Title: p.Title, Content: p.Content, DueDate: p.DueDate}
	if p.Parameters != nil {
		a.Title = firstNonEmpty(a.Title, p.Parameters.Title)
		a.Content = firstNonEmpty(a.Content, p.Parameters.Content)
		a.DueDate = firstNonEmpty(a.DueDate, p.Parameters.DueDate)
	}
	if strings.TrimSpace(a.Title) == "" {
		return text
	}
	return Reply{Kind: KindAction, Action: &a, Text: reply}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Strob0t/taskpad/internal/port/assistant"
)

// ErrNoResponse is returned when a 2xx body lacks a string "response" field.
var ErrNoResponse = errors.New("assistant reply has no response field")

// Assistant posts {prompt, context} to a remote assistant endpoint.
// It implements assistant.Remote.
type Assistant struct {
	endpoint string
	client   *Client
}

var _ assistant.Remote = (*Assistant)(nil)

// NewAssistant creates a remote assistant for an arbitrary endpoint URL.
func NewAssistant(endpoint, token string, timeout time.Duration) *Assistant {
	return &Assistant{endpoint: endpoint, client: New("", token, timeout)}
}

// Ask sends the request and returns the reply text.
func (a *Assistant) Ask(ctx context.Context, req assistant.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal assistant request: %w", err)
	}

	data, err := a.client.send(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}

	var resp struct {
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode assistant reply: %w", err)
	}
	if resp.Response == nil {
		return "", ErrNoResponse
	}
	return *resp.Response, nil
}

// Package apiclient is an HTTP client for a TaskPad server: the REST task API
// and the remote assistant endpoint.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/domain/user"
)

const maxResponseBytes = 4 << 20

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("taskpad API error %d", e.Code)
	}
	return fmt.Sprintf("taskpad API error %d: %s", e.Code, e.Message)
}

// Client talks to the TaskPad REST API under /api/v1.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. token may be empty when
// the server runs without authentication. A zero timeout means 60s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login authenticates and keeps the returned access token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*user.LoginResponse, error) {
	var resp user.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", user.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// List returns the caller's tasks in the given view.
func (c *Client) List(ctx context.Context, view task.View) ([]task.Task, error) {
	var tasks []task.Task
	path := "/api/v1/tasks?view=" + url.QueryEscape(string(view))
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create creates a task.
func (c *Client) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", req, &t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

// Update applies a partial update to a task.
func (c *Client) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPut, "/api/v1/tasks/"+url.PathEscape(id), req, &t); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return &t, nil
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Assistant returns a remote assistant that posts to this server's LLM proxy.
func (c *Client) Assistant() *Assistant {
	return &Assistant{endpoint: c.baseURL + "/api/v1/llm/ask", client: c}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	data, err := c.send(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, target string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts {"error": "..."} from a response body, falling back to the raw text.
func errorMessage(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}

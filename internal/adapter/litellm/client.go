// Package litellm provides an HTTP client for the LiteLLM proxy's
// OpenAI-compatible chat completion API.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/taskpad/internal/resilience"
)

// ErrEmptyCompletion is returned when the proxy answers without any choice.
var ErrEmptyCompletion = errors.New("litellm: completion has no choices")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer from the proxy.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("litellm: status %d: %s", e.Status, e.Message)
}

// IsOutage reports whether err means the proxy or its upstream model is
// unavailable: transport failures, 408, 429 and 5xx. Other API errors are
// caused by the request and say nothing about availability.
func IsOutage(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch {
	case apiErr.Status == http.StatusRequestTimeout, apiErr.Status == http.StatusTooManyRequests:
		return true
	default:
		return apiErr.Status >= 500
	}
}

// apiError reads the OpenAI style {"error": {"message": ...}} body, falling
// back to the raw text.
func apiError(status int, body []byte) *APIError {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "":
			msg = detail.Message
		case json.Unmarshal(envelope.Error, &plain) == nil && plain != "":
			msg = plain
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request body for /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse is the flattened first choice of a completion.
type ChatCompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

type completionBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Client talks to the LiteLLM proxy.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new LiteLLM client. A zero timeout means 60s.
func NewClient(baseURL, masterKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		masterKey: masterKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Configured reports whether the client has somewhere to send requests.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// ChatCompletion sends a non-streaming chat completion request.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var out completionBody
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	return &ChatCompletionResponse{
		Content:   out.Choices[0].Message.Content,
		Model:     out.Model,
		TokensIn:  out.Usage.PromptTokens,
		TokensOut: out.Usage.CompletionTokens,
	}, nil
}

// Health checks if LiteLLM is alive.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health/liveliness", nil)
	return err == nil, err
}

// BreakerState reports the circuit state, or "none" without a breaker.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "none"
	}
	return c.breaker.State().String()
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return apiError(resp.StatusCode, data)
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Call(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

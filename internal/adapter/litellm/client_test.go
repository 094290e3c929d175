package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/taskpad/internal/adapter/litellm"
	"github.com/Strob0t/taskpad/internal/resilience"
)

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}

		var req litellm.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "mistral" || req.MaxTokens != 500 || len(req.Messages) != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected roles: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "mistral",
			"choices": [{"message": {"role": "assistant", "content": "Sure!"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key", time.Second)
	resp, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{
		Model:     "mistral",
		MaxTokens: 500,
		Messages: []litellm.ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "Sure!" || resp.TokensIn != 12 || resp.TokensOut != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := litellm.NewClient(srv.URL, "", time.Second).ChatCompletion(context.Background(), litellm.ChatCompletionRequest{})
	if !errors.Is(err, litellm.ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestChatCompletionAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		outage  bool
	}{
		{"openai envelope", http.StatusBadRequest, `{"error":{"message":"model not found","type":"invalid_request_error"}}`, "model not found", false},
		{"string error", http.StatusInternalServerError, `{"error":"boom"}`, "boom", true},
		{"plain text", http.StatusBadGateway, "upstream reset\n", "upstream reset", true},
		{"empty body", http.StatusServiceUnavailable, "", "Service Unavailable", true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, "slow down", true},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "bad key", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := litellm.NewClient(srv.URL, "", time.Second).ChatCompletion(context.Background(), litellm.ChatCompletionRequest{})
			var apiErr *litellm.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("APIError = %d %q, want %d %q", apiErr.Status, apiErr.Message, tt.status, tt.message)
			}
			if got := litellm.IsOutage(err); got != tt.outage {
				t.Errorf("IsOutage = %v, want %v", got, tt.outage)
			}
		})
	}
}

func TestIsOutageTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := litellm.NewClient(url, "", time.Second).ChatCompletion(context.Background(), litellm.ChatCompletionRequest{})
	if err == nil || !litellm.IsOutage(err) {
		t.Fatalf("connection refused must count as an outage, got %v", err)
	}
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "", time.Second)
	client.SetBreaker(resilience.NewBreaker(2, time.Minute, resilience.WithFailureFilter(litellm.IsOutage)))

	for range 2 {
		_, _ = client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{})
	}
	_, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("open circuit must not reach the server, calls = %d", calls)
	}
	if got := client.BreakerState(); got != "open" {
		t.Fatalf("BreakerState = %q", got)
	}
}

func TestBreakerIgnoresRequestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"context length exceeded"}}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "", time.Second)
	client.SetBreaker(resilience.NewBreaker(1, time.Minute, resilience.WithFailureFilter(litellm.IsOutage)))

	for range 3 {
		if _, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{}); errors.Is(err, resilience.ErrCircuitOpen) {
			t.Fatal("a 400 must not open the circuit")
		}
	}
	if got := client.BreakerState(); got != "closed" {
		t.Fatalf("BreakerState = %q", got)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/liveliness" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`"I'm alive!"`))
	}))
	defer srv.Close()

	ok, err := litellm.NewClient(srv.URL, "", time.Second).Health(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected healthy, got %v %v", ok, err)
	}
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ok, err := litellm.NewClient(srv.URL, "", time.Second).Health(context.Background())
	if err == nil || ok {
		t.Fatal("expected unhealthy")
	}
}

func TestConfigured(t *testing.T) {
	if litellm.NewClient("", "", 0).Configured() {
		t.Fatal("empty base URL must not be configured")
	}
	if !litellm.NewClient("http://x", "", 0).Configured() {
		t.Fatal("expected configured")
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/taskpad/internal/adapter/litellm"
	"github.com/Strob0t/taskpad/internal/adapter/otel"
	"github.com/Strob0t/taskpad/internal/config"
	"github.com/Strob0t/taskpad/internal/port/assistant"
)

// NotConfiguredReply is answered when no LLM backend is configured.
const NotConfiguredReply = "AI Assistant is not configured. Please set litellm.url in taskpad.yaml or LITELLM_URL."

// systemInstruction tells the model how to request task creation.
const systemInstruction = `You are a helpful assistant for a task management app.
When users ask you to create a task, respond with a JSON object:

{"action": "create_task", "title": "task name", "due_date": "tomorrow"}

due_date is optional and may be a phrase such as "today", "tomorrow", "next week" or "in 3 days".
For other questions, respond normally in plain text.
IMPORTANT: If you create a task, ONLY return the JSON object, no other text.`

// ChatCompleter is the LLM backend used by LLMService.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, req litellm.ChatCompletionRequest) (*litellm.ChatCompletionResponse, error)
	Health(ctx context.Context) (bool, error)
}

// LLMService answers assistant prompts through LiteLLM. It implements assistant.Remote.
type LLMService struct {
	llm     ChatCompleter
	cfg     config.LiteLLM
	metrics *otel.Metrics
}

var _ assistant.Remote = (*LLMService)(nil)

// NewLLMService creates an LLMService. A nil llm or empty cfg.URL leaves it unconfigured.
func NewLLMService(llm ChatCompleter, cfg config.LiteLLM) *LLMService {
	return &LLMService{llm: llm, cfg: cfg}
}

// SetMetrics attaches metric instruments.
func (s *LLMService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// Configured reports whether prompts reach a model.
func (s *LLMService) Configured() bool {
	return s.llm != nil && s.cfg.URL != ""
}

// Ask sends the prompt and task context to the model and returns its raw reply.
// A failed call is retried once with the fallback model when one is configured.
func (s *LLMService) Ask(ctx context.Context, req assistant.Request) (string, error) {
	if !s.Configured() {
		slog.WarnContext(ctx, "llm ask without a configured backend")
		return NotConfiguredReply, nil
	}

	messages := []litellm.ChatMessage{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: "Context:\n" + req.Context + "\n\nUser: " + req.Prompt},
	}

	reply, err := s.complete(ctx, s.cfg.Model, messages)
	if err == nil {
		return reply, nil
	}
	if s.cfg.FallbackModel == "" || s.cfg.FallbackModel == s.cfg.Model {
		return "", fmt.Errorf("llm completion: %w", err)
	}

	slog.WarnContext(ctx, "llm completion failed, retrying with fallback model",
		"model", s.cfg.Model, "fallback", s.cfg.FallbackModel, "error", err)
	reply, err = s.complete(ctx, s.cfg.FallbackModel, messages)
	if err != nil {
		return "", fmt.Errorf("llm completion (fallback): %w", err)
	}
	return reply, nil
}

func (s *LLMService) complete(ctx context.Context, model string, messages []litellm.ChatMessage) (string, error) {
	ctx, span := otel.StartLLMSpan(ctx, model)
	started := time.Now()

	resp, err := s.llm.ChatCompletion(ctx, litellm.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: s.cfg.MaxTokens,
	})
	s.metrics.RecordLLM(ctx, model, started, err)
	otel.EndSpan(span, err)
	if err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "llm completion", "model", resp.Model, "tokens_in", resp.TokensIn, "tokens_out", resp.TokensOut)
	return resp.Content, nil
}

// Health reports whether the LLM backend is reachable.
func (s *LLMService) Health(ctx context.Context) (bool, error) {
	if !s.Configured() {
		return false, nil
	}
	return s.llm.Health(ctx)
}

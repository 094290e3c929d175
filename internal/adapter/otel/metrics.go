package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskpad"

// Metrics holds all TaskPad metric instruments.
type Metrics struct {
	TasksCreated     metric.Int64Counter
	TasksCompleted   metric.Int64Counter
	TasksDeleted     metric.Int64Counter
	AssistantPrompts metric.Int64Counter
	AssistantActions metric.Int64Counter
	LLMRequests      metric.Int64Counter
	LLMDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates all metric instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksCreated, err = meter.Int64Counter("taskpad.tasks.created",
		metric.WithDescription("Number of tasks created"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("taskpad.tasks.completed",
		metric.WithDescription("Number of tasks marked done"))
	if err != nil {
		return nil, err
	}

	m.TasksDeleted, err = meter.Int64Counter("taskpad.tasks.deleted",
		metric.WithDescription("Number of tasks deleted"))
	if err != nil {
		return nil, err
	}

	m.AssistantPrompts, err = meter.Int64Counter("taskpad.assistant.prompts",
		metric.WithDescription("Number of prompts submitted to the assistant"))
	if err != nil {
		return nil, err
	}

	m.AssistantActions, err = meter.Int64Counter("taskpad.assistant.actions",
		metric.WithDescription("Number of assistant actions executed"))
	if err != nil {
		return nil, err
	}

	m.LLMRequests, err = meter.Int64Counter("taskpad.llm.requests",
		metric.WithDescription("Number of LLM requests by outcome"))
	if err != nil {
		return nil, err
	}

	m.LLMDuration, err = meter.Float64Histogram("taskpad.llm.duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordLLM records one LLM round trip. A nil receiver is a no-op.
func (m *Metrics) RecordLLM(ctx context.Context, model string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.model", model),
		attribute.String("outcome", outcome),
	)
	m.LLMRequests.Add(ctx, 1, attrs)
	m.LLMDuration.Record(ctx, time.Since(started).Seconds(), attrs)
}

func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// TaskCreated counts a created task.
func (m *Metrics) TaskCreated(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.TasksCreated)
	}
}

// TaskCompleted counts a task transitioning to done.
func (m *Metrics) TaskCompleted(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.TasksCompleted)
	}
}

// TaskDeleted counts a deleted task.
func (m *Metrics) TaskDeleted(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.TasksDeleted)
	}
}

// Prompt counts a prompt submitted to an assistant session.
func (m *Metrics) Prompt(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.AssistantPrompts)
	}
}

// Action counts an executed assistant action.
func (m *Metrics) Action(ctx context.Context, name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.add(ctx, m.AssistantActions, attribute.String("action", name), attribute.String("outcome", outcome))
}

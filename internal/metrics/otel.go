package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/autoloom/loom/internal/metrics"

// Instruments mirrors a run's RunMetrics counters as OTel instruments, so
// a process embedding this runtime can export them to any OTel backend.
// This is additive: the RunMetrics/RunEvent data model remains the
// source of truth.
type Instruments struct {
	meter    metric.Meter
	tracer   trace.Tracer
	steps    metric.Int64Counter
	llmCalls metric.Int64Counter
	patches  metric.Int64Counter
	fallback metric.Int64Counter
}

// NewInstruments registers this package's counters against the global
// OTel MeterProvider/TracerProvider. Safe to call with no provider
// configured; instruments then record into OTel's no-op implementation.
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(instrumentationName)
	tracer := otel.Tracer(instrumentationName)

	steps, err := meter.Int64Counter("loom.steps.total", metric.WithDescription("steps executed, by ok"))
	if err != nil {
		return nil, err
	}
	llmCalls, err := meter.Int64Counter("loom.llm_calls.total", metric.WithDescription("LLM calls issued during recovery"))
	if err != nil {
		return nil, err
	}
	patches, err := meter.Int64Counter("loom.patches.total", metric.WithDescription("authoring_patch attempts, by applied"))
	if err != nil {
		return nil, err
	}
	fallback, err := meter.Int64Counter("loom.fallback_ladder.total", metric.WithDescription("fallback ladder actions attempted, by method"))
	if err != nil {
		return nil, err
	}

	return &Instruments{meter: meter, tracer: tracer, steps: steps, llmCalls: llmCalls, patches: patches, fallback: fallback}, nil
}

// StartStepSpan wraps a single step's execution in an OTel span.
func (i *Instruments) StartStepSpan(ctx context.Context, stepID, op string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "loom.step", trace.WithAttributes(
		attribute.String("step.id", stepID),
		attribute.String("step.op", op),
	))
}

// RecordStep increments the step counter for a finished step.
func (i *Instruments) RecordStep(ctx context.Context, ok bool) {
	i.steps.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

// RecordLlmCall increments the LLM call counter.
func (i *Instruments) RecordLlmCall(ctx context.Context) {
	i.llmCalls.Add(ctx, 1)
}

// RecordPatch increments the patch counter.
func (i *Instruments) RecordPatch(ctx context.Context, applied bool) {
	i.patches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("applied", applied)))
}

// RecordFallback increments the fallback ladder counter for method.
func (i *Instruments) RecordFallback(ctx context.Context, method string) {
	i.fallback.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

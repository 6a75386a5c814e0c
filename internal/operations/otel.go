package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"stockpipe/internal/infrastructure"
)

// TracerName names the run tracer
const TracerName = "stockpipe.operations"

// RunTracer provides OpenTelemetry instrumentation for runs and steps
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewRunTracer creates a tracer from initialized providers. A nil providers
// value yields a no-op tracer.
func NewRunTracer(providers *infrastructure.OTelProviders) *RunTracer {
	if providers == nil || providers.Tracer == nil || providers.Metrics == nil {
		return NoopRunTracer()
	}
	return &RunTracer{tracer: providers.Tracer, metrics: providers.Metrics}
}

// NoopRunTracer returns a tracer that records nothing
func NoopRunTracer() *RunTracer {
	return &RunTracer{
		tracer:  tracenoop.NewTracerProvider().Tracer(TracerName),
		metrics: infrastructure.NoopMetrics(),
	}
}

// Metrics returns the pipeline instruments
func (rt *RunTracer) Metrics() *infrastructure.PipelineMetrics { return rt.metrics }

// StartRun creates a span for a whole run
func (rt *RunTracer) StartRun(ctx context.Context, runID, trigger string) (context.Context, trace.Span) {
	ctx, span := rt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.trigger", trigger),
		),
	)
	rt.metrics.ActiveRuns.Add(ctx, 1)
	return ctx, span
}

// EndRun records the run outcome on span and metrics
func (rt *RunTracer) EndRun(ctx context.Context, span trace.Span, duration time.Duration, status RunStatus, err error) {
	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}
	rt.metrics.ActiveRuns.Add(ctx, -1)
	rt.metrics.RecordRun(ctx, duration, string(status))
	span.End()
}

// StartStep creates a child span for one step
func (rt *RunTracer) StartStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)
}

// EndStep records the step outcome on span and metrics
func (rt *RunTracer) EndStep(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		infrastructure.RecordError(ctx, err, trace.WithAttributes(attribute.String("step.id", stepID)))
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	rt.metrics.RecordStep(ctx, stepID, duration, status)
	span.End()
}

// Count adds n to a pipeline counter with an optional table attribute
func (rt *RunTracer) Count(ctx context.Context, c metric.Int64Counter, n int, table string) {
	if n <= 0 {
		return
	}
	if table == "" {
		c.Add(ctx, int64(n))
		return
	}
	c.Add(ctx, int64(n), metric.WithAttributes(attribute.String("table", table)))
}

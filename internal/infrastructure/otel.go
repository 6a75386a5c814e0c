package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"stockpipe/internal/config"
	"stockpipe/pkg/contracts"
)

// InstrumentationName names the tracer and meter
const InstrumentationName = "stockpipe"

// OTelProviders holds the OpenTelemetry providers. Tracer and Meter are
// always usable; they fall back to no-op implementations when disabled.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Metrics        *PipelineMetrics
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics from configuration
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(contracts.Version),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{
		Tracer: tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		Meter:  metricnoop.NewMeterProvider().Meter(InstrumentationName),
		Logger: logger.With(slog.String("component", "otel")),
	}

	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.MetricsEnabled {
		if err := initializeMetrics(res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	metrics, err := NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	providers.Metrics = metrics

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providers.Logger.InfoContext(ctx, "opentelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	return providers, nil
}

func initializeTracing(cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	if cfg.TraceExporter != "stdout" {
		return nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(contracts.Version))
	otel.SetTracerProvider(tp)
	return nil
}

// initializeMetrics wires the OTel Prometheus exporter to a private registry
// so repeated initialization (tests, restarts) never collides.
func initializeMetrics(res *resource.Resource, providers *OTelProviders) error {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	providers.MeterProvider = mp
	providers.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(contracts.Version))
	providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	otel.SetMeterProvider(mp)
	return nil
}

// PipelineMetrics holds the application metrics
type PipelineMetrics struct {
	RunsTotal        metric.Int64Counter
	RunDuration      metric.Float64Histogram
	ActiveRuns       metric.Int64UpDownCounter
	StepsTotal       metric.Int64Counter
	StepDuration     metric.Float64Histogram
	RowsIngested     metric.Int64Counter
	CoercionFailures metric.Int64Counter
	ViewsWritten     metric.Int64Counter
	ViewsSkipped     metric.Int64Counter
	WriteFailures    metric.Int64Counter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	ViewCacheHits       metric.Int64Counter
	ViewCacheMisses     metric.Int64Counter
}

// NewPipelineMetrics creates the application instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = append(errs, err)
		return h
	}

	m.RunsTotal = counter("pipeline_runs_total", "Total number of pipeline runs")
	m.RunDuration = seconds("pipeline_run_duration_seconds", "Pipeline run duration in seconds")
	active, err := meter.Int64UpDownCounter("pipeline_active_runs", metric.WithDescription("Number of runs in progress"))
	errs = append(errs, err)
	m.ActiveRuns = active
	m.StepsTotal = counter("pipeline_steps_total", "Total number of pipeline steps executed")
	m.StepDuration = seconds("pipeline_step_duration_seconds", "Pipeline step duration in seconds")
	m.RowsIngested = counter("pipeline_rows_ingested_total", "Raw rows read from the source")
	m.CoercionFailures = counter("pipeline_cell_coercion_failures_total", "Cells that failed numeric or date coercion")
	m.ViewsWritten = counter("pipeline_views_written_total", "Tables persisted")
	m.ViewsSkipped = counter("pipeline_views_skipped_total", "Aggregate views skipped for missing columns")
	m.WriteFailures = counter("pipeline_write_failures_total", "Artifact writes that failed")
	m.HTTPRequestsTotal = counter("http_requests_total", "Total number of HTTP requests")
	m.HTTPRequestDuration = seconds("http_request_duration_seconds", "HTTP request duration in seconds")
	m.ViewCacheHits = counter("view_cache_hits_total", "Decoded view cache hits")
	m.ViewCacheMisses = counter("view_cache_misses_total", "Decoded view cache misses")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// NoopMetrics returns metrics backed by a no-op meter
func NoopMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(metricnoop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

// RecordRun records the outcome of a pipeline run
func (m *PipelineMetrics) RecordRun(ctx context.Context, duration time.Duration, status string) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStep records the outcome of a pipeline step
func (m *PipelineMetrics) RecordStep(ctx context.Context, stepID string, duration time.Duration, status string) {
	attrs := metric.WithAttributes(attribute.String("step", stepID), attribute.String("status", status))
	m.StepsTotal.Add(ctx, 1, attrs)
	m.StepDuration.Record(ctx, duration.Seconds(), attrs)
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	p.Logger.InfoContext(ctx, "opentelemetry shutdown complete")
	return nil
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

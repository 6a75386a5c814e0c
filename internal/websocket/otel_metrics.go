package websocket

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// OTelMetrics records hub activity
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	messageBytes       metric.Int64Counter
	droppedMessages    metric.Int64Counter
}

// NewOTelMetrics creates the hub instruments on meter. A nil meter yields
// no-op instruments.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("websocket")
	}

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m := &OTelMetrics{
		connectionsTotal: counter("websocket_connections_total", "Total number of WebSocket connections"),
		messagesSent:     counter("websocket_messages_sent_total", "Messages delivered to clients"),
		messageBytes:     counter("websocket_message_bytes_total", "Bytes delivered to clients"),
		droppedMessages:  counter("websocket_dropped_messages_total", "Messages dropped on full buffers"),
	}

	active, err := meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"))
	errs = append(errs, err)
	m.connectionsActive = active

	duration, err := meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"), metric.WithUnit("s"))
	errs = append(errs, err)
	m.connectionDuration = duration

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConnection records a new client
func (m *OTelMetrics) RecordConnection(ctx context.Context) {
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

// RecordDisconnection records a client leaving
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, duration time.Duration, reason string) {
	attrs := metric.WithAttributes(attribute.String("disconnect_reason", reason))
	m.connectionsActive.Add(ctx, -1, attrs)
	m.connectionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMessageSent records one frame written to a client
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, size int) {
	m.messagesSent.Add(ctx, 1)
	m.messageBytes.Add(ctx, int64(size))
}

// RecordDroppedMessage records a message that could not be queued
func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, reason string) {
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("drop_reason", reason)))
}

package app

import (
	"fmt"
	"log/slog"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/config"
	"stockpipe/internal/exporter"
	"stockpipe/internal/infrastructure"
	"stockpipe/internal/operations"
)

// NewManager wires the six-step pipeline against the configured output
// layout and mirrors. hub receives run snapshots and may be nil.
func NewManager(cfg *config.Config, paths *config.Paths, hub operations.Hub, providers *infrastructure.OTelProviders, logger *slog.Logger) (*operations.Manager, error) {
	tracer := operations.NewRunTracer(providers)

	registry, err := operations.NewPipelineRegistry(operations.Deps{
		Engine: aggregation.NewEngine(aggregation.Options{WeekStart: cfg.Pipeline.WeekStartDay()}, logger),
		Store:  exporter.NewStoreFromConfig(cfg, paths, logger),
		Tracer: tracer,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register pipeline steps: %w", err)
	}

	broadcaster := operations.NewStatusBroadcaster(hub, logger)
	return operations.NewManager(registry, operations.ConfigFrom(cfg.Pipeline), paths, broadcaster, tracer, logger), nil
}

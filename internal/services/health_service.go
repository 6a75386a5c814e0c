package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"stockpipe/internal/config"
	"stockpipe/internal/validation"
	"stockpipe/pkg/contracts"
)

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	paths     *config.Paths
	runs      *RunService
	hub       ClientCounter
	files     *validation.FileValidator
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. runs and hub may be nil in
// read-only deployments.
func NewHealthService(paths *config.Paths, runs *RunService, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		paths:     paths,
		runs:      runs,
		hub:       hub,
		files:     validation.NewFileValidator(logger),
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// LivenessCheck reports that the process is serving
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	runtimeInfo := map[string]any{
		"uptime_seconds": time.Since(hs.startTime).Seconds(),
		"goroutines":     runtime.NumGoroutine(),
	}
	if hs.hub != nil {
		runtimeInfo["websocket_clients"] = hs.hub.ClientCount()
	}
	if hs.runs != nil {
		if id := hs.runs.Active(); id != "" {
			runtimeInfo["active_run_id"] = id
		}
	}

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime:   runtimeInfo,
	}
}

// ReadinessCheck reports whether the output directory can be served
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"output": hs.checkOutput(),
		},
	}

	for _, s := range status.Services {
		if s.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "readiness check failed", slog.String("message", s.Message))
			break
		}
	}
	return status
}

func (hs *HealthService) checkOutput() ServiceHealth {
	if err := hs.files.ValidateOutputDirectory(hs.paths.OutputDir); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}

// Version returns build and format version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

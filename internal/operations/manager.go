package operations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/infrastructure"
)

// Manager orchestrates pipeline runs. At most one run is active at a time.
type Manager struct {
	registry    *Registry
	config      *Config
	paths       *config.Paths
	broadcaster *StatusBroadcaster
	tracer      *RunTracer
	logger      *slog.Logger

	mu     sync.RWMutex
	active *RunState
	latest *Manifest
}

// NewManager creates a run manager. broadcaster and tracer may be nil.
func NewManager(registry *Registry, cfg *Config, paths *config.Paths, broadcaster *StatusBroadcaster, tracer *RunTracer, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = NewConfig()
	}
	if tracer == nil {
		tracer = NoopRunTracer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if broadcaster == nil {
		broadcaster = NewStatusBroadcaster(nil, logger)
	}
	return &Manager{
		registry:    registry,
		config:      cfg,
		paths:       paths,
		broadcaster: broadcaster,
		tracer:      tracer,
		logger:      logger.With(slog.String("component", "operations")),
	}
}

// Broadcaster returns the status broadcaster
func (m *Manager) Broadcaster() *StatusBroadcaster { return m.broadcaster }

// IsRunning reports whether a run is in progress
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil
}

// Execute performs one run and writes its manifest. The manifest is returned
// even when the run fails.
func (m *Manager) Execute(ctx context.Context, req RunRequest) (*Manifest, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	state := NewRunState(req.ID, req)

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, apperrors.NewConflictError("a pipeline run is already in progress").
			WithContext("active_run_id", m.active.ID)
	}
	m.active = state
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
	}()

	ctx = infrastructure.WithTraceID(ctx, req.ID)
	ctx, span := m.tracer.StartRun(ctx, req.ID, req.Trigger)

	steps, err := m.registry.DependencyOrder()
	if err != nil {
		err = NewFatalError("invalid step registry", err)
		state.Fail(err)
		m.tracer.EndRun(ctx, span, state.Duration(), state.GetStatus(), err)
		return m.finish(ctx, state), err
	}

	for _, s := range steps {
		state.AddStep(NewStepState(s.ID(), s.Name()))
	}
	m.broadcaster.CreateRun(req.ID, steps)

	state.Start()
	m.broadcaster.StartRun(req.ID)
	m.logger.InfoContext(ctx, "run started",
		slog.String("run_id", req.ID),
		slog.String("source", req.Source),
		slog.String("trigger", req.Trigger),
		slog.Int("step_count", len(steps)))

	runErr := m.executeSequential(ctx, state, steps)

	switch {
	case runErr == nil:
		state.Complete()
		m.broadcaster.CompleteRun(req.ID, "run completed")
	case GetErrorType(runErr) == ErrorTypeCancellation:
		state.Cancel(runErr)
		m.broadcaster.CancelRun(req.ID)
	default:
		state.Fail(runErr)
		m.broadcaster.FailRun(req.ID, runErr)
	}
	m.tracer.EndRun(ctx, span, state.Duration(), state.GetStatus(), runErr)

	return m.finish(ctx, state), runErr
}

func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "run cancelled", slog.String("run_id", state.ID), slog.String("step", step.ID()))
			m.skipRemaining(state, steps[i:], "run cancelled")
			return NewCancellationError(step.ID(), err)
		}

		m.logger.InfoContext(ctx, "executing step",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.logger.ErrorContext(ctx, "step failed",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}
	return nil
}

// executeStep runs one step with validation, timeout and retries
func (m *Manager) executeStep(ctx context.Context, state *RunState, step Step) error {
	st := state.GetStep(step.ID())
	if st == nil {
		return NewFatalError("step state not found", fmt.Errorf("step %s", step.ID()))
	}

	if err := step.Validate(state); err != nil {
		verr := NewValidationError(step.ID(), err.Error())
		st.Fail(verr)
		m.broadcaster.FailStep(state.ID, step.ID(), verr)
		return verr
	}

	retry := m.config.RetryConfig
	timeout := m.config.GetStepTimeout(step.ID())

	for attempt := 1; ; attempt++ {
		st.Start()
		m.broadcaster.StartStep(state.ID, step.ID())

		stepCtx, span := m.tracer.StartStep(ctx, state.ID, step.ID())
		stepCtx, cancel := context.WithTimeout(stepCtx, timeout)
		start := time.Now()
		err := step.Execute(stepCtx, state)
		cancel()
		duration := time.Since(start)
		m.tracer.EndStep(stepCtx, span, step.ID(), duration, err)

		if err == nil {
			st.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "step completed", st.Result().Metadata)
			m.logger.InfoContext(ctx, "step completed",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", duration))
			return nil
		}

		opErr := m.classify(ctx, step.ID(), err)
		if !opErr.Retryable || attempt >= retry.MaxAttempts {
			st.Fail(opErr)
			m.broadcaster.FailStep(state.ID, step.ID(), opErr)
			return opErr
		}

		delay := retryDelay(attempt, retry)
		m.logger.WarnContext(ctx, "step retry",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retry.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			cerr := NewCancellationError(step.ID(), ctx.Err())
			st.Fail(cerr)
			m.broadcaster.FailStep(state.ID, step.ID(), cerr)
			return cerr
		}
	}
}

func (m *Manager) classify(ctx context.Context, stepID string, err error) *OperationError {
	var opErr *OperationError
	switch {
	case errors.As(err, &opErr):
		if opErr.Step == "" {
			opErr.Step = stepID
		}
		return opErr
	case ctx.Err() != nil:
		return NewCancellationError(stepID, err)
	case errors.Is(err, context.DeadlineExceeded):
		e := NewTimeoutError(stepID, err)
		e.Retryable = true
		return e
	default:
		return NewExecutionError(stepID, err, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
	}
}

func (m *Manager) skipRemaining(state *RunState, steps []Step, reason string) {
	for _, s := range steps {
		if st := state.GetStep(s.ID()); st != nil && st.GetStatus() == StepStatusPending {
			st.Skip(reason)
			m.broadcaster.SkipStep(state.ID, s.ID(), reason)
		}
	}
}

// finish writes the manifest, logs the run summary and records it as latest
func (m *Manager) finish(ctx context.Context, state *RunState) *Manifest {
	outputDir := ""
	if m.paths != nil {
		outputDir = m.paths.OutputDir
	}
	manifest := BuildManifest(state, outputDir)
	m.broadcaster.CleanupOldRuns(SnapshotRetention)

	if m.paths != nil {
		if err := WriteManifest(m.paths.ManifestFile, manifest); err != nil {
			m.logger.ErrorContext(ctx, "failed to write manifest",
				slog.String("run_id", state.ID),
				slog.String("file_path", m.paths.ManifestFile),
				slog.String("error", err.Error()))
		}
	}

	level := slog.LevelInfo
	if manifest.Status != RunStatusCompleted {
		level = slog.LevelError
	}
	m.logger.Log(ctx, level, "run finished",
		slog.String("run_id", manifest.RunID),
		slog.String("status", string(manifest.Status)),
		slog.Int64("duration_ms", manifest.DurationMS),
		slog.Int("rows_ingested", manifest.Rows.Ingested),
		slog.Int("rows_clean", manifest.Rows.Clean),
		slog.Int("coercion_failures", manifest.Rows.CoercionFailures),
		slog.Int("artifacts", len(manifest.Artifacts)),
		slog.Any("views_skipped", manifest.ViewsSkipped),
		slog.Int("warnings", len(manifest.Warnings)),
		slog.String("error", manifest.Error))

	m.mu.Lock()
	m.latest = manifest
	m.mu.Unlock()
	return manifest
}

// LatestManifest returns the manifest of the most recent run, falling back
// to the one on disk from a previous process.
func (m *Manager) LatestManifest() (*Manifest, error) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}
	if m.paths == nil {
		return nil, apperrors.NewNotFoundError("run manifest")
	}

	manifest, err := ReadManifest(m.paths.ManifestFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("run manifest")
		}
		return nil, err
	}
	return manifest, nil
}

// retryDelay grows exponentially from InitialDelay, capped at MaxDelay
func retryDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"stockpipe/internal/config"
	"stockpipe/internal/dataprocessing"
	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/operations"
)

// RunService starts pipeline runs on behalf of the API and the scheduler.
// At most one run is active; a second request is rejected with a conflict.
type RunService struct {
	manager  *operations.Manager
	pipeline config.PipelineConfig
	logger   *slog.Logger

	mu     sync.Mutex
	active string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunService creates a run service using pipeline for the default source
// and reader options
func NewRunService(manager *operations.Manager, pipeline config.PipelineConfig, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		manager:  manager,
		pipeline: pipeline,
		logger:   logger.With(slog.String("component", "run_service")),
	}
}

func (s *RunService) request(source, trigger string) (operations.RunRequest, error) {
	if source == "" {
		source = s.pipeline.Source
	}
	if source == "" {
		return operations.RunRequest{}, apperrors.NewAppValidationError("no source configured")
	}
	return operations.RunRequest{
		Source:  source,
		Trigger: trigger,
		Options: dataprocessing.SourceOptions{
			Format:    s.pipeline.Format,
			Delimiter: s.pipeline.DelimiterRune(),
			Sheet:     s.pipeline.Sheet,
		},
	}, nil
}

// reserve claims the single run slot
func (s *RunService) reserve(ctx context.Context, req *operations.RunRequest) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" {
		return nil, apperrors.NewConflictError("a pipeline run is already in progress").
			WithContext("active_run_id", s.active)
	}

	req.ID = uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	s.active = req.ID
	s.cancel = cancel
	return runCtx, nil
}

func (s *RunService) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.active = ""
	s.cancel = nil
}

// Start launches a run in the background and returns its ID. source may be
// empty to use the configured source. The run outlives the calling request.
func (s *RunService) Start(ctx context.Context, source, trigger string) (string, error) {
	req, err := s.request(source, trigger)
	if err != nil {
		return "", err
	}
	runCtx, err := s.reserve(context.WithoutCancel(ctx), &req)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "run requested",
		slog.String("run_id", req.ID),
		slog.String("source", req.Source),
		slog.String("trigger", trigger))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		// the manager logs and records the outcome
		_, _ = s.manager.Execute(runCtx, req)
	}()
	return req.ID, nil
}

// Run executes a run with the configured source and waits for it
func (s *RunService) Run(ctx context.Context, trigger string) (*operations.Manifest, error) {
	req, err := s.request("", trigger)
	if err != nil {
		return nil, err
	}
	runCtx, err := s.reserve(ctx, &req)
	if err != nil {
		return nil, err
	}
	defer s.release()

	return s.manager.Execute(runCtx, req)
}

// Cancel stops the active run and returns its ID
func (s *RunService) Cancel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == "" {
		return "", apperrors.NewNotFoundError("active run")
	}
	s.cancel()
	s.logger.InfoContext(ctx, "run cancellation requested", slog.String("run_id", s.active))
	return s.active, nil
}

// Active returns the ID of the run in progress, if any
func (s *RunService) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Latest returns the manifest of the most recent run
func (s *RunService) Latest() (*operations.Manifest, error) {
	return s.manager.LatestManifest()
}

// Snapshot returns the live status of the most recent run
func (s *RunService) Snapshot() (*operations.RunSnapshot, bool) {
	return s.manager.Broadcaster().Latest()
}

// Wait blocks until background runs have finished
func (s *RunService) Wait() {
	s.wg.Wait()
}

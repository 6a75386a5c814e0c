// Package scheduler triggers pipeline runs on a cron schedule in server mode.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/operations"
)

// Runner executes one pipeline run and waits for it
type Runner interface {
	Run(ctx context.Context, trigger string) (*operations.Manifest, error)
}

// Scheduler manages scheduled pipeline runs
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	cfg    config.ScheduleConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. An empty cron expression schedules nothing;
// run_on_start still applies.
func New(cfg config.ScheduleConfig, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Cron != "" {
		if _, err := s.cron.AddFunc(cfg.Cron, func() { s.run(operations.TriggerSchedule) }); err != nil {
			cancel()
			return nil, apperrors.NewConfigError(fmt.Sprintf("invalid schedule.cron %q", cfg.Cron), err)
		}
	}
	return s, nil
}

// Start starts the cron scheduler and the startup run, if enabled
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("cron", s.cfg.Cron),
		slog.Bool("run_on_start", s.cfg.RunOnStart),
		slog.Any("next_run", s.Next()))

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(operations.TriggerStartup)
		}()
	}
}

// Stop stops scheduling, cancels a scheduled run in progress and waits for it
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Next returns the next scheduled run time, or nil when nothing is scheduled
func (s *Scheduler) Next() *time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 || entries[0].Next.IsZero() {
		return nil
	}
	next := entries[0].Next
	return &next
}

// RunNow executes a run immediately and waits for it
func (s *Scheduler) RunNow(trigger string) {
	s.run(trigger)
}

func (s *Scheduler) run(trigger string) {
	s.logger.Info("scheduled run starting", slog.String("trigger", trigger))

	manifest, err := s.runner.Run(s.ctx, trigger)
	switch {
	case apperrors.IsType(err, apperrors.ErrTypeConflict):
		s.logger.Info("scheduled run skipped, a run is already in progress", slog.String("trigger", trigger))
	case err != nil:
		attrs := []any{slog.String("trigger", trigger), slog.String("error", err.Error())}
		if manifest != nil {
			attrs = append(attrs, slog.String("run_id", manifest.RunID))
		}
		s.logger.Error("scheduled run failed", attrs...)
	default:
		s.logger.Info("scheduled run finished",
			slog.String("trigger", trigger),
			slog.String("run_id", manifest.RunID),
			slog.Int64("duration_ms", manifest.DurationMS))
	}
}

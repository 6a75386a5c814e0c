package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
	"stockpipe/pkg/contracts/domain"
)

// FormatParquet names the primary storage format
const FormatParquet = "parquet"

// Artifact is one file (or database) written by a run
type Artifact struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
}

// Sink is a secondary output that mirrors the persisted tables
type Sink interface {
	Name() string
	// Write persists the tables, returning what was written and one error
	// per artifact that failed.
	Write(ctx context.Context, tables []domain.Dataset) ([]Artifact, []error)
	// Remove deletes stale copies of the named tables
	Remove(ctx context.Context, names []string) error
}

// Report summarizes one Persist call
type Report struct {
	Written  []Artifact       `json:"written"`
	Removed  []string         `json:"removed,omitempty"`
	Failures []domain.Warning `json:"failures,omitempty"`
}

// Store writes tables to Parquet, the primary format, and to any
// configured mirrors.
type Store struct {
	paths  *config.Paths
	sinks  []Sink
	logger *slog.Logger
}

// NewStore creates a store writing into paths.OutputDir
func NewStore(paths *config.Paths, logger *slog.Logger, sinks ...Sink) *Store {
	return &Store{
		paths:  paths,
		sinks:  sinks,
		logger: logger.With(slog.String("component", "view_store")),
	}
}

// NewStoreFromConfig creates a store with the mirrors enabled in cfg
func NewStoreFromConfig(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *Store {
	var sinks []Sink
	for _, m := range cfg.Pipeline.Mirrors {
		switch m {
		case config.MirrorCSV:
			sinks = append(sinks, NewCSVSink(paths, logger))
		case config.MirrorSQLite:
			sinks = append(sinks, NewSQLiteSink(paths, logger))
		case config.MirrorXLSX:
			sinks = append(sinks, NewWorkbookSink(paths, logger))
		}
	}
	return NewStore(paths, logger, sinks...)
}

// Paths returns the resolved output layout
func (s *Store) Paths() *config.Paths { return s.paths }

// Persist overwrites every given table and removes the stale artifacts of
// the skipped ones. A failed artifact is reported and does not stop the
// others; an error is returned only on cancellation or when every artifact
// failed.
func (s *Store) Persist(ctx context.Context, tables []domain.Dataset, skipped []string) (*Report, error) {
	var (
		mu     sync.Mutex
		report = &Report{}
	)
	fail := func(artifact string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Failures = append(report.Failures, domain.Warning{
			Type:    domain.WarnWriteFailure,
			Message: apperrors.NewWriteFailureError(artifact, err).Error(),
			View:    artifact,
		})
		s.logger.ErrorContext(ctx, "write failed", slog.String("artifact", artifact), slog.String("error", err.Error()))
	}
	ok := func(a Artifact) {
		mu.Lock()
		defer mu.Unlock()
		report.Written = append(report.Written, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ds := range tables {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := s.paths.TableFile(ds.TableName())
			if err := writeDataset(path, ds); err != nil {
				fail(ds.TableName(), err)
				return nil
			}
			s.logger.InfoContext(gctx, "saved", slog.String("table", ds.TableName()), slog.String("file_path", path), slog.Int("rows", ds.Len()))
			ok(Artifact{Name: ds.TableName(), Format: FormatParquet, Path: path, Rows: ds.Len()})
			return nil
		})
	}
	for _, sink := range s.sinks {
		g.Go(func() error {
			written, errs := sink.Write(gctx, tables)
			for _, a := range written {
				ok(a)
			}
			for _, err := range errs {
				fail(sink.Name(), err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if err := s.removeStale(ctx, skipped, report); err != nil {
		return report, err
	}

	sort.Slice(report.Written, func(i, j int) bool {
		if report.Written[i].Format != report.Written[j].Format {
			return report.Written[i].Format < report.Written[j].Format
		}
		return report.Written[i].Name < report.Written[j].Name
	})

	if len(report.Written) == 0 && len(report.Failures) > 0 {
		return report, apperrors.NewWriteFailureError("all artifacts",
			fmt.Errorf("%d artifacts failed", len(report.Failures)))
	}
	return report, nil
}

func (s *Store) removeStale(ctx context.Context, skipped []string, report *Report) error {
	for _, name := range skipped {
		if err := ctx.Err(); err != nil {
			return err
		}
		removed, err := removeIfExists(s.paths.TableFile(name))
		if err != nil {
			report.Failures = append(report.Failures, domain.Warning{
				Type:    domain.WarnWriteFailure,
				Message: apperrors.NewWriteFailureError(name, err).Error(),
				View:    name,
			})
			continue
		}
		if removed {
			s.logger.InfoContext(ctx, "removed stale view", slog.String("view", name))
			report.Removed = append(report.Removed, name)
		}
	}

	for _, sink := range s.sinks {
		if err := sink.Remove(ctx, skipped); err != nil {
			report.Failures = append(report.Failures, domain.Warning{
				Type:    domain.WarnWriteFailure,
				Message: apperrors.NewWriteFailureError(sink.Name(), err).Error(),
				View:    sink.Name(),
			})
		}
	}
	return nil
}

// Load reads a persisted table by name
func (s *Store) Load(name string) (domain.Dataset, error) {
	return ReadDataset(s.paths.TableFile(name), name)
}

package operations

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/exporter"
	"stockpipe/internal/shared/testutil"
	"stockpipe/pkg/contracts/domain"
)

func TestManager_ExecuteFullPipeline(t *testing.T) {
	paths := testPaths(t)
	hub := &recordingHub{}
	mgr, handler := newPipelineManager(t, paths, hub)

	manifest, err := mgr.Execute(context.Background(), RunRequest{Source: testutil.WriteMarketCSV(t), Trigger: TriggerCLI})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, manifest.Status)
	assert.NotEmpty(t, manifest.RunID)
	assert.Equal(t, 5, manifest.Rows.Ingested)
	assert.Equal(t, 5, manifest.Rows.Clean)
	assert.Empty(t, manifest.ViewsSkipped)
	assert.Len(t, manifest.Artifacts, 1+len(domain.ViewNames))

	require.Len(t, manifest.Steps, 6)
	for i, id := range []string{StepIDIngest, StepIDNormalize, StepIDCanonicalize, StepIDDerive, StepIDAggregate, StepIDPersist} {
		assert.Equal(t, id, manifest.Steps[i].ID)
		assert.Equal(t, StepStatusCompleted, manifest.Steps[i].Status)
	}

	onDisk, err := ReadManifest(paths.ManifestFile)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunID, onDisk.RunID)

	daily, err := exporter.ReadView[domain.DailyRow](paths.TableFile(domain.ViewDaily), domain.ViewDaily)
	require.NoError(t, err)
	require.NotEmpty(t, daily.Rows)
	first := daily.Rows[0]
	assert.Equal(t, "AAPL", *first.Ticker)
	assert.InDelta(t, 150.5, *first.AvgOpenPrice, 1e-9)
	assert.InDelta(t, 150.75, *first.AvgClosePrice, 1e-9)
	assert.Equal(t, int64(1), first.GapUpCount)

	last := hub.last()
	require.NotNil(t, last)
	assert.Equal(t, RunStatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)

	assert.True(t, handler.ContainsAttr("run_id", manifest.RunID))
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "run finished")

	latest, err := mgr.LatestManifest()
	require.NoError(t, err)
	assert.Same(t, manifest, latest)
}

func TestManager_SourceUnavailable(t *testing.T) {
	paths := testPaths(t)
	mgr, _ := newPipelineManager(t, paths, nil)

	manifest, err := mgr.Execute(context.Background(), RunRequest{Source: "/does/not/exist.csv"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))

	assert.Equal(t, RunStatusFailed, manifest.Status)
	assert.Equal(t, StepStatusFailed, manifest.Steps[0].Status)
	for _, s := range manifest.Steps[1:] {
		assert.Equal(t, StepStatusSkipped, s.Status)
	}
	assert.Empty(t, manifest.Artifacts)
	assert.NoFileExists(t, paths.TableFile(domain.CleanedTableName))
}

func TestManager_DirectorySource(t *testing.T) {
	paths := testPaths(t)
	mgr, _ := newPipelineManager(t, paths, nil)

	source := testutil.WriteMarketCSV(t)
	manifest, err := mgr.Execute(context.Background(), RunRequest{Source: filepath.Dir(source)})
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, manifest.Status)
	assert.Equal(t, filepath.Dir(source), manifest.Source)
	assert.Equal(t, source, manifest.ResolvedSource)
	assert.Equal(t, 5, manifest.Rows.Ingested)
}

func TestManager_SchemaCollisionProducesNoOutput(t *testing.T) {
	paths := testPaths(t)
	mgr, _ := newPipelineManager(t, paths, nil)

	src := testutil.WriteFile(t, "collide.csv", testutil.CSVLines(
		[]string{"Open Price", "open_price", "Ticker"},
		[]string{"1", "2", "a"},
	))

	manifest, err := mgr.Execute(context.Background(), RunRequest{Source: src})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
	assert.Equal(t, StepStatusFailed, manifest.Steps[1].Status)
	assert.NoFileExists(t, paths.TableFile(domain.CleanedTableName))
}

func TestManager_MissingColumnsSkipViews(t *testing.T) {
	paths := testPaths(t)
	mgr, _ := newPipelineManager(t, paths, nil)

	src := testutil.WriteFile(t, "partial.csv", testutil.CSVLines(
		[]string{"Ticker", "Trade Date", "Open Price", "Close Price"},
		[]string{"aapl", "2024-01-02", "1", "2"},
	))

	manifest, err := mgr.Execute(context.Background(), RunRequest{Source: src})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ViewSector, domain.ViewExchange, domain.ViewNotes}, manifest.ViewsSkipped)
	assert.ElementsMatch(t, []string{domain.FieldVolume, domain.FieldSector, domain.FieldNotes, domain.FieldValidated, domain.FieldExchange},
		manifest.MissingColumns)
	assert.FileExists(t, paths.TableFile(domain.ViewDaily))
	assert.NoFileExists(t, paths.TableFile(domain.ViewSector))

	var types []string
	for _, w := range manifest.Warnings {
		types = append(types, w.Type)
	}
	assert.Contains(t, types, domain.WarnSchemaIncomplete)
	assert.Contains(t, types, domain.WarnAggregationSkipped)
}

func TestManager_RejectsConcurrentRun(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	started := make(chan struct{})
	release := make(chan struct{})

	reg := NewRegistry()
	require.NoError(t, reg.Register(newFuncStep("block", func(ctx context.Context, _ *RunState) error {
		close(started)
		<-release
		return nil
	})))
	mgr := NewManager(reg, nil, nil, nil, nil, logger)

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Execute(context.Background(), RunRequest{})
		done <- err
	}()
	<-started
	assert.True(t, mgr.IsRunning())

	_, err := mgr.Execute(context.Background(), RunRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConflict))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, mgr.IsRunning())
}

func TestManager_Cancelled(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(newFuncStep("a", func(context.Context, *RunState) error { return nil })))
	mgr := NewManager(reg, nil, testPaths(t), nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manifest, err := mgr.Execute(ctx, RunRequest{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeCancellation, GetErrorType(err))
	assert.Equal(t, RunStatusCancelled, manifest.Status)
	assert.Equal(t, StepStatusSkipped, manifest.Steps[0].Status)
}

func TestManager_RetriesRetryableFailure(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	var calls atomic.Int32

	reg := NewRegistry()
	require.NoError(t, reg.Register(newFuncStep("flaky", func(context.Context, *RunState) error {
		if calls.Add(1) == 1 {
			return apperrors.NewSourceUnavailableError("src", errors.New("busy"))
		}
		return nil
	})))

	cfg := NewConfig()
	cfg.RetryConfig = RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	mgr := NewManager(reg, cfg, nil, nil, nil, logger)

	_, err := mgr.Execute(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestManager_StepTimeout(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(newFuncStep("slow", func(ctx context.Context, _ *RunState) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	cfg := NewConfig()
	cfg.SetStepTimeout("slow", 10*time.Millisecond)
	mgr := NewManager(reg, cfg, nil, nil, nil, logger)

	manifest, err := mgr.Execute(context.Background(), RunRequest{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.Equal(t, RunStatusFailed, manifest.Status)
}

func TestManager_LatestManifestFromDisk(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)
	mgr := NewManager(NewRegistry(), nil, paths, nil, nil, logger)

	_, err := mgr.LatestManifest()
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	require.NoError(t, WriteManifest(paths.ManifestFile, &Manifest{RunID: "previous", Status: RunStatusCompleted}))
	m, err := mgr.LatestManifest()
	require.NoError(t, err)
	assert.Equal(t, "previous", m.RunID)

	_, statErr := os.Stat(paths.ManifestFile)
	assert.NoError(t, statErr)
}

func TestRetryDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, retryDelay(1, cfg))
	assert.Equal(t, 2*time.Second, retryDelay(2, cfg))
	assert.Equal(t, 4*time.Second, retryDelay(3, cfg))
	assert.Equal(t, 5*time.Second, retryDelay(4, cfg))
}

package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/shared/testutil"
	"stockpipe/pkg/contracts/domain"
)

func TestStore_PersistAll(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	paths := testPaths(t)
	store := NewStore(paths, logger, NewCSVSink(paths, logger))

	report, err := store.Persist(context.Background(), sampleTables(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.Len(t, report.Written, 2*len(sampleTables()))

	for _, ds := range sampleTables() {
		assert.FileExists(t, paths.TableFile(ds.TableName()))
		assert.FileExists(t, paths.CSVFile(ds.TableName()))
	}
	assert.True(t, handler.ContainsMessage("saved"))

	loaded, err := store.Load(domain.ViewSector)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestStore_RemovesStaleSkippedView(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)
	store := NewStore(paths, logger)

	stale := paths.TableFile(domain.ViewNotes)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	var tables []domain.Dataset
	for _, ds := range sampleTables() {
		if ds.TableName() != domain.ViewNotes {
			tables = append(tables, ds)
		}
	}

	report, err := store.Persist(context.Background(), tables, []string{domain.ViewNotes})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ViewNotes}, report.Removed)
	assert.NoFileExists(t, stale)
}

func TestStore_PartialFailure(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)

	// a non-empty directory in place of the target makes the rename fail
	blocked := paths.TableFile(domain.ViewDaily)
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "x"), 0o755))

	report, err := NewStore(paths, logger).Persist(context.Background(), sampleTables(), nil)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, domain.WarnWriteFailure, report.Failures[0].Type)
	assert.Equal(t, domain.ViewDaily, report.Failures[0].View)
	assert.Len(t, report.Written, len(sampleTables())-1)
}

func TestStore_TotalFailure(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)

	// a regular file where the output directory should be
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	paths.OutputDir = file

	report, err := NewStore(paths, logger).Persist(context.Background(), sampleTables(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeWriteFailure))
	assert.Len(t, report.Failures, len(sampleTables()))
}

func TestStore_Cancelled(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore(paths, logger).Persist(ctx, sampleTables(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, paths.TableFile(domain.ViewDaily))
}

func TestNewStoreFromConfig_Mirrors(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default()
	cfg.Pipeline.Mirrors = []string{config.MirrorCSV, config.MirrorSQLite, config.MirrorXLSX}

	store := NewStoreFromConfig(cfg, testPaths(t), logger)
	require.Len(t, store.sinks, 3)
	assert.Equal(t, config.MirrorCSV, store.sinks[0].Name())
	assert.Equal(t, config.MirrorSQLite, store.sinks[1].Name())
	assert.Equal(t, config.MirrorXLSX, store.sinks[2].Name())
}

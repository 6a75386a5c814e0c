package operations

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/config"
	"stockpipe/internal/exporter"
	"stockpipe/internal/shared/testutil"
)

// recordingHub captures broadcast snapshots
type recordingHub struct {
	mu        sync.Mutex
	snapshots []*RunSnapshot
}

func (h *recordingHub) BroadcastUpdate(eventType, runID, status string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := payload.(*RunSnapshot); ok && eventType == EventTypeRunSnapshot {
		h.snapshots = append(h.snapshots, s)
	}
}

func (h *recordingHub) last() *RunSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[len(h.snapshots)-1]
}

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	dir := t.TempDir()
	return &config.Paths{
		OutputDir:    dir,
		ManifestFile: filepath.Join(dir, config.ManifestFileName),
		CSVDir:       filepath.Join(dir, config.CSVMirrorDir),
		SQLiteFile:   filepath.Join(dir, config.SQLiteFileName),
		WorkbookFile: filepath.Join(dir, config.WorkbookFileName),
	}
}

// newPipelineManager wires the standard six steps against paths
func newPipelineManager(t *testing.T, paths *config.Paths, hub Hub) (*Manager, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)

	reg, err := NewPipelineRegistry(Deps{
		Engine: aggregation.NewEngine(aggregation.Options{WeekStart: time.Monday}, logger),
		Store:  exporter.NewStore(paths, logger),
		Logger: logger,
	})
	require.NoError(t, err)

	sb := NewStatusBroadcaster(hub, logger)
	t.Cleanup(sb.Stop)
	return NewManager(reg, NewConfig(), paths, sb, nil, logger), handler
}

// funcStep is a configurable step for manager tests
type funcStep struct {
	BaseStep
	run func(ctx context.Context, state *RunState) error
}

func newFuncStep(id string, run func(context.Context, *RunState) error, deps ...string) *funcStep {
	return &funcStep{BaseStep: NewBaseStep(id, id, deps...), run: run}
}

func (s *funcStep) Execute(ctx context.Context, state *RunState) error { return s.run(ctx, state) }

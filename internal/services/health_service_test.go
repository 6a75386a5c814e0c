package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpipe/pkg/contracts"
)

type fixedClients int

func (f fixedClients) ClientCount() int { return int(f) }

func TestHealthService(t *testing.T) {
	paths := testPaths(t)
	hs := NewHealthService(paths, nil, fixedClients(2), nil)
	ctx := context.Background()

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, "ok", live.Status)
	assert.Equal(t, contracts.Version, live.Version)
	assert.Equal(t, 2, live.Runtime["websocket_clients"])

	assert.Equal(t, "ready", hs.ReadinessCheck(ctx).Status)

	paths.OutputDir = filepath.Join(paths.OutputDir, "missing")
	ready := hs.ReadinessCheck(ctx)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Contains(t, ready.Services["output"].Message, "unavailable")

	file := filepath.Join(t.TempDir(), "file")
	assert.NoError(t, os.WriteFile(file, nil, 0o644))
	paths.OutputDir = file
	assert.Equal(t, "not_ready", hs.ReadinessCheck(ctx).Status)

	assert.Equal(t, contracts.DataFormatVersion, hs.Version().DataFormat)
}

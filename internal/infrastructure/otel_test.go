package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpipe/internal/config"
	"stockpipe/internal/shared/testutil"
)

func TestInitializeOTel_MetricsExposed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default().Telemetry
	cfg.MetricsEnabled = true

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	providers.Metrics.RecordRun(context.Background(), time.Second, "completed")
	providers.Metrics.ViewsWritten.Add(context.Background(), 7)

	require.NotNil(t, providers.PrometheusHTTP)
	w := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pipeline_runs_total")
	assert.Contains(t, w.Body.String(), "pipeline_views_written_total")
}

func TestInitializeOTel_Disabled(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default().Telemetry
	cfg.MetricsEnabled = false

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Metrics)

	providers.Metrics.RecordStep(context.Background(), "ingest", time.Millisecond, "completed")
	require.NoError(t, providers.Shutdown(context.Background()))
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/middleware"
	"stockpipe/internal/operations"
	"stockpipe/internal/services"
	"stockpipe/internal/shared/testutil"
	"stockpipe/pkg/contracts/domain"
)

// MockViewReader is a mock implementation of ViewReader
type MockViewReader struct {
	mock.Mock
}

func (m *MockViewReader) ListViews(ctx context.Context) ([]services.ViewInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.ViewInfo), args.Error(1)
}

func (m *MockViewReader) GetView(ctx context.Context, name string, tickers []string) (*services.ViewData, error) {
	args := m.Called(ctx, name, tickers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ViewData), args.Error(1)
}

func (m *MockViewReader) Tickers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockRunController is a mock implementation of RunController
type MockRunController struct {
	mock.Mock
}

func (m *MockRunController) Start(ctx context.Context, source, trigger string) (string, error) {
	args := m.Called(ctx, source, trigger)
	return args.String(0), args.Error(1)
}

func (m *MockRunController) Cancel(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockRunController) Latest() (*operations.Manifest, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Manifest), args.Error(1)
}

func (m *MockRunController) Snapshot() (*operations.RunSnapshot, bool) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*operations.RunSnapshot), args.Bool(1)
}

func setupRouter(t *testing.T, views ViewReader, runs RunController) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errs := apperrors.NewErrorHandler(logger, false)

	vh := NewViewsHandler(views, errs, logger)
	rh := NewRunsHandler(runs, errs, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/views", vh.Routes())
	r.Get("/api/tickers", vh.Tickers)
	r.Mount("/api/runs", rh.Routes())
	return r
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestViewsHandler_ListViews(t *testing.T) {
	views := &MockViewReader{}
	views.On("ListViews", mock.Anything).Return([]services.ViewInfo{
		{Name: domain.CleanedTableName, Columns: domain.CleanColumns, Rows: 3},
		{Name: domain.ViewNotes, Columns: domain.NotesColumns, Missing: true},
	}, nil)

	rec, body := do(t, setupRouter(t, views, &MockRunController{}), http.MethodGet, "/api/views")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	list := body["views"].([]any)
	assert.Equal(t, true, list[1].(map[string]any)["missing"])
	views.AssertExpectations(t)
}

func TestViewsHandler_GetView(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		setup      func(*MockViewReader)
		wantStatus int
		check      func(*testing.T, map[string]any)
	}{
		{
			name:   "unfiltered",
			target: "/api/views/agg_ticker",
			setup: func(m *MockViewReader) {
				m.On("GetView", mock.Anything, "agg_ticker", []string(nil)).
					Return(&services.ViewData{Name: "agg_ticker", Rows: [][]any{{"AAPL"}}, RowCount: 1}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.EqualValues(t, 1, body["row_count"])
			},
		},
		{
			name:   "tickers upper-cased",
			target: "/api/views/agg_sector?ticker=aapl&ticker=msft",
			setup: func(m *MockViewReader) {
				m.On("GetView", mock.Anything, "agg_sector", []string{"AAPL", "MSFT"}).
					Return(&services.ViewData{Name: "agg_sector", Tickers: []string{"AAPL", "MSFT"}}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, []any{"AAPL", "MSFT"}, body["tickers"])
			},
		},
		{
			name:       "invalid ticker",
			target:     "/api/views/agg_daily?ticker=ABCDEFGHIJKLMNOPQ",
			setup:      func(m *MockViewReader) {},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
			},
		},
		{
			name:   "unknown view",
			target: "/api/views/agg_missing",
			setup: func(m *MockViewReader) {
				m.On("GetView", mock.Anything, "agg_missing", []string(nil)).
					Return(nil, apperrors.NewNotFoundError("view agg_missing"))
			},
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apperrors.TypeNotFound, body["type"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := &MockViewReader{}
			tt.setup(views)

			rec, body := do(t, setupRouter(t, views, &MockRunController{}), http.MethodGet, tt.target)

			assert.Equal(t, tt.wantStatus, rec.Code)
			tt.check(t, body)
			views.AssertExpectations(t)
		})
	}
}

func TestViewsHandler_Tickers(t *testing.T) {
	views := &MockViewReader{}
	views.On("Tickers", mock.Anything).Return([]string{"AAPL", "MSFT"}, nil)

	rec, body := do(t, setupRouter(t, views, &MockRunController{}), http.MethodGet, "/api/tickers")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"AAPL", "MSFT"}, body["tickers"])
}

func TestRunsHandler_StartRun(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		runs := &MockRunController{}
		runs.On("Start", mock.Anything, "", operations.TriggerAPI).Return("run-1", nil)

		rec, body := do(t, setupRouter(t, &MockViewReader{}, runs), http.MethodPost, "/api/runs")

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "run-1", body["run_id"])
		assert.Equal(t, "/api/runs/current", rec.Header().Get("Location"))
		runs.AssertExpectations(t)
	})

	t.Run("conflict", func(t *testing.T) {
		runs := &MockRunController{}
		runs.On("Start", mock.Anything, "", operations.TriggerAPI).
			Return("", apperrors.NewConflictError("a pipeline run is already in progress").WithContext("active_run_id", "run-0"))

		rec, body := do(t, setupRouter(t, &MockViewReader{}, runs), http.MethodPost, "/api/runs")

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apperrors.TypeRunInProgress, body["type"])
		assert.Equal(t, "run-0", body["context"].(map[string]any)["active_run_id"])
	})
}

func TestRunsHandler_LatestRun(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		runs := &MockRunController{}
		runs.On("Latest").Return(&operations.Manifest{RunID: "run-1", Status: operations.RunStatusCompleted}, nil)

		rec, body := do(t, setupRouter(t, &MockViewReader{}, runs), http.MethodGet, "/api/runs/latest")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "run-1", body["run_id"])
	})

	t.Run("no runs yet", func(t *testing.T) {
		runs := &MockRunController{}
		runs.On("Latest").Return(nil, apperrors.NewNotFoundError("run manifest"))

		rec, _ := do(t, setupRouter(t, &MockViewReader{}, runs), http.MethodGet, "/api/runs/latest")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRunsHandler_CurrentAndCancel(t *testing.T) {
	runs := &MockRunController{}
	runs.On("Snapshot").Return(&operations.RunSnapshot{RunID: "run-2", Status: operations.RunStatusRunning, Progress: 50}, true)
	runs.On("Cancel", mock.Anything).Return("run-2", nil)
	router := setupRouter(t, &MockViewReader{}, runs)

	rec, body := do(t, router, http.MethodGet, "/api/runs/current")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 50, body["progress"])

	rec, body = do(t, router, http.MethodDelete, "/api/runs/current")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "cancelling", body["status"])
}

func TestRunsHandler_CurrentBeforeFirstRun(t *testing.T) {
	runs := &MockRunController{}
	runs.On("Snapshot").Return(nil, false)

	rec, _ := do(t, setupRouter(t, &MockViewReader{}, runs), http.MethodGet, "/api/runs/current")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

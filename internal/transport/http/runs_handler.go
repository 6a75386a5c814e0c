package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/operations"
)

// RunsHandler triggers and reports pipeline runs
type RunsHandler struct {
	runs   RunController
	errors *apperrors.ErrorHandler
	logger *slog.Logger
}

// RunAccepted is the response to a run request
type RunAccepted struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// NewRunsHandler creates a runs handler
func NewRunsHandler(runs RunController, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		runs:   runs,
		errors: errorHandler,
		logger: logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns a chi router for the runs endpoints
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.StartRun)
	r.Get("/latest", h.LatestRun)
	r.Get("/current", h.CurrentRun)
	r.Delete("/current", h.CancelRun)
	return r
}

// StartRun handles POST /api/runs. The run uses the configured source.
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	id, err := h.runs.Start(r.Context(), "", operations.TriggerAPI)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "run accepted", slog.String("run_id", id))
	w.Header().Set("Location", "/api/runs/current")
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, RunAccepted{RunID: id, Status: string(operations.RunStatusRunning)})
}

// LatestRun handles GET /api/runs/latest
func (h *RunsHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.runs.Latest()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, manifest)
}

// CurrentRun handles GET /api/runs/current, the live snapshot of the most
// recent run in this process
func (h *RunsHandler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.runs.Snapshot()
	if !ok {
		h.errors.HandleError(w, r, apperrors.NewNotFoundError("run"))
		return
	}
	render.JSON(w, r, snap)
}

// CancelRun handles DELETE /api/runs/current
func (h *RunsHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := h.runs.Cancel(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, RunAccepted{RunID: id, Status: "cancelling"})
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/middleware"
)

// ViewsHandler serves the read-only view endpoints
type ViewsHandler struct {
	views     ViewReader
	validator *middleware.QueryValidator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewViewsHandler creates a views handler
func NewViewsHandler(views ViewReader, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *ViewsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewsHandler{
		views:     views,
		validator: middleware.NewQueryValidator(),
		errors:    errorHandler,
		logger:    logger.With(slog.String("handler", "views")),
	}
}

// Routes returns a chi router for the views endpoints
func (h *ViewsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListViews)
	r.Get("/{name}", h.GetView)
	return r
}

// ListViews handles GET /api/views
func (h *ViewsHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.views.ListViews(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"views": views,
		"count": len(views),
	})
}

// GetView handles GET /api/views/{name}?ticker=...
func (h *ViewsHandler) GetView(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.validator.Tickers(r)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	data, err := h.views.GetView(r.Context(), chi.URLParam(r, "name"), tickers)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, data)
}

// Tickers handles GET /api/tickers
func (h *ViewsHandler) Tickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.views.Tickers(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"tickers": tickers,
		"count":   len(tickers),
	})
}

package http

import (
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"stockpipe/internal/config"
	"stockpipe/internal/middleware"
	"stockpipe/internal/websocket"
)

// WebSocketHandler upgrades connections and hands them to the hub
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	cfg      config.WebSocketConfig
	logger   *slog.Logger
}

// NewWebSocketHandler creates a websocket handler accepting the given origins
func NewWebSocketHandler(hub *websocket.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		cfg:    cfg,
		logger: logger.With(slog.String("handler", "websocket")),
	}
}

// ServeWS handles GET /ws
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("error", err.Error()))
		return
	}

	websocket.Serve(h.hub, websocket.WrapConn(conn), middleware.GetRequestID(r.Context()), h.cfg, h.logger)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
	"stockpipe/internal/infrastructure"
	customMiddleware "stockpipe/internal/middleware"
	"stockpipe/internal/operations"
	"stockpipe/internal/scheduler"
	"stockpipe/internal/services"
	handlers "stockpipe/internal/transport/http"
	ws "stockpipe/internal/websocket"
	"stockpipe/pkg/contracts"
)

// Application represents the server container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	WebSocketHub *ws.Hub
	Manager      *operations.Manager
	Scheduler    *scheduler.Scheduler
	Services     *ServiceContainer
}

// ServiceContainer holds the application services
type ServiceContainer struct {
	Runs   *services.RunService
	Views  *services.ViewService
	Health *services.HealthService
}

// NewApplication loads the configuration at configPath (empty for the
// well-known locations and environment only) and builds the application
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from a loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("application starting",
		slog.String("version", contracts.GetFullVersionString()),
		slog.String("output_dir", cfg.Pipeline.OutputDir))

	paths, err := config.NewPaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(cfg); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := a.initializeServices(); err != nil {
		_ = otelProviders.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices wires hub, pipeline, services and scheduler
func (a *Application) initializeServices() error {
	wsMetrics, err := ws.NewOTelMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, wsMetrics)

	manager, err := NewManager(a.Config, a.Paths, a.WebSocketHub, a.OTelProviders, a.Logger)
	if err != nil {
		return err
	}
	a.Manager = manager
	a.WebSocketHub.SetSnapshotSource(manager.Broadcaster())

	runs := services.NewRunService(manager, a.Config.Pipeline, a.Logger)
	views, err := services.NewViewService(a.Paths, a.Config.Server.CacheSize, a.OTelProviders.Metrics, a.Logger)
	if err != nil {
		return err
	}
	health := services.NewHealthService(a.Paths, runs, a.WebSocketHub, a.Logger)

	sched, err := scheduler.New(a.Config.Schedule, runs, a.Logger)
	if err != nil {
		return err
	}
	a.Scheduler = sched

	a.Services = &ServiceContainer{
		Runs:   runs,
		Views:  views,
		Health: health,
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	// RequestID first so every later log line carries the trace_id
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	// The upgrade must reach gorilla with an unwrapped ResponseWriter
	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Server.AllowedOrigins, a.Logger)
	r.Get("/ws", wsHandler.ServeWS)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Telemetry(a.OTelProviders.Tracer, a.OTelProviders.Metrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.Config.Server.AllowedOrigins))
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, errorHandler, a.Logger).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)
	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apperrors.ErrorHandler) {
	health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	views := handlers.NewViewsHandler(a.Services.Views, errorHandler, a.Logger)
	runs := handlers.NewRunsHandler(a.Services.Runs, errorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.LivenessCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/version", health.Version)
		r.Get("/tickers", views.Tickers)
		r.Mount("/views", views.Routes())
		r.Mount("/runs", runs.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the hub, the scheduler and the HTTP server. cancel is called
// if the server fails after starting.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.Config.Server.Port),
		slog.String("output_dir", a.Paths.OutputDir),
		slog.String("schedule", a.Config.Schedule.Cron),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()
	a.Scheduler.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application. A run in progress is cancelled
// and waited for so its manifest is written.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Scheduler.Stop()
	if id, err := a.Services.Runs.Cancel(ctx); err == nil {
		a.Logger.InfoContext(ctx, "cancelled active run", slog.String("run_id", id))
	}
	a.Services.Runs.Wait()

	a.WebSocketHub.Stop()
	a.Manager.Broadcaster().Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

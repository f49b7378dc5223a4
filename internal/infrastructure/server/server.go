package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/selectorkit/internal/api/http"
	"github.com/GriffinCanCode/selectorkit/internal/api/middleware"
	"github.com/GriffinCanCode/selectorkit/internal/api/ws"
	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/domain/resolver"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/config"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	registry *registry.Registry
	resolver *resolver.Resolver
	events   *ws.Handler
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// RegistryOptions maps selector configuration onto registry options.
func RegistryOptions(cfg config.SelectorConfig, logger *zap.Logger, metrics *monitoring.Metrics) registry.Options {
	return registry.Options{
		Roots:        cfg.Roots,
		Layout:       paths.LayoutFor(cfg.Extensions),
		Strict:       cfg.Strict,
		HotReload:    cfg.HotReload,
		ForcePolling: cfg.ForcePolling,
		PollInterval: cfg.PollInterval,
		Debounce:     cfg.Debounce,
		CacheTTL:     cfg.CacheTTL,
		MaxFileSize:  cfg.MaxFileSize,
		Concurrency:  cfg.LoadConcurrency,
		Logger:       logger,
		Metrics:      metrics,
	}
}

// NewServer creates a new server instance. Configuration is not read from
// disk until Run.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing selector server",
		zap.String("port", cfg.Server.Port),
		zap.Strings("roots", cfg.Selectors.Roots),
		zap.Bool("hot_reload", cfg.Selectors.HotReload),
	)

	// Metrics first; every other component records into them
	metrics := monitoring.NewMetrics()

	reg, err := registry.New(RegistryOptions(cfg.Selectors, logger.Component("registry"), metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	res := resolver.New(reg, resolver.Options{
		Logger:  logger.Component("resolver"),
		Metrics: metrics,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracing.New("selectorkit", logger.Component("trace"))))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSFor(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limit := middleware.DefaultRateLimitConfig()
		limit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limit.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limit))
	}

	handlers := apihttp.NewHandlers(reg, res, logger.Component("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(reg, ws.Options{
		Logger:  logger.Component("ws"),
		Metrics: metrics,
	})
	router.GET("/events", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: reg,
		resolver: res,
		events:   wsHandler,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the configuration registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Prepare loads every configuration and starts hot reloading.
func (s *Server) Prepare(ctx context.Context) error {
	if err := s.registry.Load(ctx); err != nil {
		return err
	}
	health := s.registry.Health()
	s.logger.Info("Configurations loaded",
		zap.String("health", string(health.Status)),
		zap.Int("configurations", health.Configurations),
		zap.Int("load_errors", health.LoadErrors),
		zap.Strings("reasons", health.Reasons),
	)
	return s.registry.Start(ctx)
}

// Run loads configurations, then serves HTTP until ctx is cancelled and
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Prepare(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves HTTP on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.events.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the watcher and flushes logs.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if err := s.registry.Stop(); err != nil {
		s.logger.Error("Failed to stop watcher", zap.Error(err))
		return fmt.Errorf("failed to stop watcher: %w", err)
	}

	// Sync logger before exit
	_ = s.logger.Sync()

	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/offscreen/internal/api/http"
	"github.com/GriffinCanCode/offscreen/internal/api/middleware"
	"github.com/GriffinCanCode/offscreen/internal/domain/platform"
	"github.com/GriffinCanCode/offscreen/internal/domain/preload"
	"github.com/GriffinCanCode/offscreen/internal/domain/surface"
	"github.com/GriffinCanCode/offscreen/internal/domain/webview"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/config"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/offscreen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/offscreen/internal/providers/http/client"
	"github.com/GriffinCanCode/offscreen/internal/providers/storage"
	"github.com/GriffinCanCode/offscreen/internal/providers/surface/document"
	"github.com/GriffinCanCode/offscreen/internal/providers/surface/native"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/GriffinCanCode/offscreen/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	registry *webview.Registry
	router   *gin.Engine
	http     *http.Server
}

// Option customizes server composition
type Option func(*options)

type options struct {
	logger *logging.Logger
	views  native.ViewProvider
	probe  platform.Probe
}

// WithLogger replaces the logger built from the logging config
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithViewProvider registers the mobile-native backend for android, ios and
// harmonyos over the host's native views.
func WithViewProvider(p native.ViewProvider) Option {
	return func(o *options) { o.views = p }
}

// WithProbe replaces the host probe derived from the webview config
func WithProbe(p platform.Probe) Option {
	return func(o *options) { o.probe = p }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
		if err != nil {
			logger = logging.NewDefault()
			logger.Warn("Invalid logging config, using defaults", zap.Error(err))
		}
	}

	logger.Info("Initializing offscreen server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("store", storeName(cfg.WebView.StorePath)),
	)

	metrics := monitoring.NewMetrics()

	fetcher := client.New(client.Config{
		Timeout:      cfg.HTTP.Timeout.Duration,
		RetryMax:     cfg.HTTP.RetryMax,
		RetryWaitMin: cfg.HTTP.RetryWaitMin.Duration,
		RetryWaitMax: cfg.HTTP.RetryWaitMax.Duration,
		RateLimit:    cfg.HTTP.RequestsPerSecond,
		UserAgent:    cfg.WebView.UserAgent,
		MaxBodySize:  cfg.HTTP.MaxBodySize,
	}, client.WithLogger(logger.Named("fetch").Logger), client.WithMetrics(metrics))

	catalog, err := buildCatalog(cfg, fetcher, o.views, logger)
	if err != nil {
		return nil, err
	}

	probe := o.probe
	if probe == nil {
		probe = hostProbe(cfg.WebView)
	}
	resolver := platform.NewResolver(probe, catalog)

	cache := preload.New(buildStore(cfg.WebView.StorePath),
		preload.WithWindow(cfg.WebView.PreloadValidity.Duration),
		preload.WithLogger(logger.Named("preload").Logger),
	)

	registry := webview.NewRegistry(resolver, catalog, cache,
		webview.WithLogger(logger.Named("webview").Logger),
		webview.WithMetrics(metrics),
		webview.WithWarmupDelay(cfg.WebView.WarmupDelay.Duration),
		webview.WithLoadTimeout(cfg.WebView.LoadTimeout.Duration),
		webview.WithEventBuffer(cfg.WebView.EventBuffer),
		webview.WithUserAgent(cfg.WebView.UserAgent),
	)

	logger.Info("Platform resolved",
		zap.String("platform", string(registry.Platform())),
		zap.Bool("supported", registry.IsSupported()),
	)

	router := buildRouter(cfg, logger, metrics, registry)

	return &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		router:   router,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func buildCatalog(cfg *config.Config, fetcher *client.Client, views native.ViewProvider, logger *logging.Logger) (*surface.Catalog, error) {
	catalog := surface.NewCatalog()

	docFactory := document.NewFactory(fetcher,
		document.WithLogger(logger.Named("document").Logger),
		document.WithCache(document.NewResponseCache(cfg.WebView.ResponseCacheEntries)),
		document.WithScriptTimeout(cfg.WebView.ScriptTimeout.Duration),
	)
	if err := catalog.Register(types.PlatformWeb, surface.KindEmbeddedDocument, docFactory); err != nil {
		return nil, err
	}

	if views == nil {
		return catalog, nil
	}
	nativeFactory := native.NewFactory(views, native.WithLogger(logger.Named("native").Logger))
	for _, p := range []types.PlatformID{types.PlatformAndroid, types.PlatformIOS, types.PlatformHarmonyOS} {
		if err := catalog.Register(p, surface.KindMobileNative, nativeFactory); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, registry *webview.Registry) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Named("http").Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSFor(cfg.CORS.AllowOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(registry,
		apihttp.WithLogger(logger.Named("api").Logger),
		apihttp.WithWaitTimeout(cfg.WebView.LoadTimeout.Duration),
	)
	events := ws.NewHandler(registry,
		ws.WithLogger(logger.Named("ws").Logger),
		ws.WithMetrics(metrics),
		ws.WithOrigins(cfg.CORS.AllowOrigins),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"platform": registry.Platform(),
			"stats":    registry.Stats(),
			"metrics":  metrics.Snapshot(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	handlers.Register(v1)
	v1.GET("/instances/:id/events", events.HandleConnection)

	return router
}

func hostProbe(cfg config.WebViewConfig) platform.Probe {
	if cfg.HostOS == "" && cfg.HostDescriptor == "" {
		return platform.RuntimeProbe
	}
	hostOS := cfg.HostOS
	if hostOS == "" {
		hostOS = runtime.GOOS
	}
	return platform.StaticProbe(hostOS, cfg.HostDescriptor)
}

func buildStore(path string) preload.Store {
	if path == "" {
		return storage.NewMemory()
	}
	return storage.NewFile(path)
}

func storeName(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the instance registry
func (s *Server) Registry() *webview.Registry {
	return s.registry
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, destroys every instance and flushes the logger
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
		err = multierr.Append(err, fmt.Errorf("http shutdown: %w", shutdownErr))
	}

	count := s.registry.InstanceCount()
	if destroyErr := s.registry.DestroyAllInstances(ctx); destroyErr != nil {
		s.logger.Error("Failed to destroy instances", zap.Error(destroyErr))
		err = multierr.Append(err, destroyErr)
	}
	s.logger.Info("Instances destroyed", zap.Int("count", count))

	_ = s.logger.Sync()
	return err
}

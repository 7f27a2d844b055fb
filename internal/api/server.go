package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhima/dbclient/internal/api/handlers"
	"github.com/dhima/dbclient/internal/api/middleware"
	"github.com/dhima/dbclient/internal/api/response"
	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/internal/scheduler"
	"github.com/dhima/dbclient/internal/statements"
	"github.com/dhima/dbclient/internal/storage"
	"github.com/dhima/dbclient/pkg/config"
	"github.com/dhima/dbclient/platform/events"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

type auditPublisher interface {
	statements.AuditPublisher
	Close() error
}

// Server orchestrates HTTP routing and dependencies for the statement gateway.
type Server struct {
	config config.App
	logger logging.Logger
	router *gin.Engine

	client    *storage.Client
	publisher auditPublisher
	keepalive *scheduler.Engine
	service   *statements.Service
}

// NewServer loads configuration, builds the logger it describes and wires
// the server.
func NewServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires the API dependencies together: the database client, the audit
// publisher, the keepalive scheduler and the statement service. The
// keepalive job is started before New returns.
func New(cfg config.App, logger logging.Logger) (*Server, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if cfg.UsesDefaultCredentials() && cfg.Environment != "development" {
		logger.Warn("database is using the built-in development credentials",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(cfg))
	defer cancel()

	client, err := storage.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		return nil, err
	}

	var publisher auditPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Zap())
	} else {
		logger.Info("no kafka brokers configured, statement audit disabled")
	}

	service := statements.NewService(client, publisher, logger)

	keepalive, err := scheduler.NewEngine(cfg.KeepaliveSchedule, client, logger)
	if err == nil {
		err = keepalive.Start()
	}
	if err != nil {
		_ = publisher.Close()
		_ = client.Close()
		return nil, err
	}

	server := &Server{
		config:    cfg,
		logger:    logger,
		client:    client,
		publisher: publisher,
		keepalive: keepalive,
		service:   service,
	}

	server.setupRouter()
	return server, nil
}

func connectTimeout(cfg config.App) time.Duration {
	if cfg.Database.ConnectTimeout > 0 {
		return cfg.Database.ConnectTimeout
	}
	return 5 * time.Second
}

// setupRouter configures the Gin router with middleware and routes.
func (s *Server) setupRouter() {
	router := gin.New()
	zapLogger := s.logger.Zap()

	// Recovery first so it catches panics from the rest of the chain.
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))
	router.Use(middleware.RequestID())
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(s.config.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handlers.NewHealthHandler(s.service, s.keepalive, s.logger).Health)
	router.GET("/metrics", handlers.NewMetricsHandler(s.service).Metrics)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		statementHandler := handlers.NewStatementHandler(s.service, s.logger)
		stmts := v1.Group("/statements")
		{
			stmts.POST("/insert", statementHandler.Insert)
			stmts.POST("/select", statementHandler.Select)
			stmts.POST("/update", statementHandler.Update)
			stmts.POST("/remove", statementHandler.Remove)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	s.router = router
}

// allowsAnyOrigin reports whether origins contains the "*" wildcard, which
// gin-contrib/cors refuses to combine with credentials.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve starts the HTTP server and blocks until SIGINT or SIGTERM, then
// shuts down gracefully.
func (s *Server) Serve() error {
	addr := ":" + s.config.APIPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server",
			zap.String("address", addr),
			zap.String("environment", s.config.Environment),
			zap.String("driver", s.config.Database.Driver),
			zap.String("log_level", s.config.LogLevel),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-quit:
		s.logger.Info("shutting down server gracefully...")
	case err := <-serveErr:
		if err != nil {
			s.logger.Error("failed to start server", zap.Error(err))
			_ = s.Close(context.Background())
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		_ = s.Close(ctx)
		return err
	}

	s.logger.Info("server stopped")
	return s.Close(ctx)
}

// Close stops the keepalive job, flushes the audit publisher, closes the
// database client and syncs the logger.
func (s *Server) Close(ctx context.Context) error {
	var errs []error

	if err := s.keepalive.Stop(ctx); err != nil {
		s.logger.Error("failed to stop keepalive", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("failed to close audit publisher", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.client.Close(); err != nil {
		s.logger.Error("failed to close database client", zap.Error(err))
		errs = append(errs, err)
	}

	// Sync on a terminal stdout/stderr reports EINVAL; that is not a failure.
	if err := s.logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

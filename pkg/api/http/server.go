package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/internal/application/experiments"
	"github.com/aescanero/promptlab/pkg/ports"
)

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	service *experiments.Service
	objects ports.ObjectStore
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// Config holds HTTP server configuration. Objects may be nil when no
// avatar bucket is configured; uploads then fail with a 500.
type Config struct {
	Port    int
	Service *experiments.Service
	Objects ports.ObjectStore
	Metrics ports.MetricsCollector
	Logger  *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router:  router,
		service: cfg.Service,
		objects: cfg.Objects,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Avatar upload
	s.router.POST("/users/:userID/avatar", s.handleUploadAvatar)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Experiment endpoints
		v1.POST("/experiments", s.handleRunExperiment)
		v1.GET("/experiments", s.handleListExperiments)
		v1.GET("/experiments/:id", s.handleGetExperiment)
		v1.DELETE("/experiments/:id", s.handleDeleteExperiment)
		v1.GET("/experiments/:id/report", s.handleExperimentReport)

		// Batch endpoints
		v1.POST("/batches", s.handleSubmitBatch)
		v1.GET("/batches/:id", s.handleGetBatch)
		v1.GET("/batches/:id/report", s.handleBatchReport)

		// Provider catalog
		v1.GET("/providers", s.handleListProviders)
	}
}

// SetupWebSocket adds WebSocket handler to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleExperimentStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/events/ws", wsHandler.HandleExperimentStream)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}

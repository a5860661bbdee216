package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/metrics"
	"github.com/genepilepsy-guide/internal/middleware"
	"github.com/genepilepsy-guide/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Workflow is the pipeline surface the HTTP API drives.
type Workflow interface {
	Run(ctx context.Context, description string) (domain.WorkflowState, error)
	ParseDescription(ctx context.Context, description string) domain.ParsedRecord
	LookupVariant(ctx context.Context, gene, variant string) (service.Resolution, error)
	RecommendTreatment(ctx context.Context, syndrome, patientContext string) string
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	workflow      Workflow
	sessions      domain.SessionStore
	metrics       *metrics.Metrics
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance. metrics may be nil.
func NewServer(configManager domain.ConfigManager, workflow Workflow, sessions domain.SessionStore, m *metrics.Metrics, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	if m != nil {
		router.Use(m.GinMiddleware())
	}
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		workflow:      workflow,
		sessions:      sessions,
		metrics:       m,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil && s.configManager.GetServerConfig().EnableMetrics {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/variants/lookup", s.handleLookupVariant)
		v1.GET("/lookups/:id", s.handleGetLookup)
		v1.DELETE("/lookups/:id", s.handleDeleteLookup)
		v1.POST("/lookups/:id/treatment", s.handleLookupTreatment)
		v1.POST("/treatments/recommend", s.handleRecommendTreatment)
		v1.POST("/parse", s.handleParse)
		v1.POST("/workflow", s.handleWorkflow)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     Version,
		"environment": s.configManager.GetConfig().Environment,
	})
}

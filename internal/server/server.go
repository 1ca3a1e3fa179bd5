// Package server exposes the refactoring workflow over HTTP: submit a
// project and intent, poll the run until it settles.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"recast/internal/config"
	"recast/internal/logging"
)

// Workflows is the slice of the orchestrator the service needs.
type Workflows interface {
	InitializeWorkflow(projectPath string, intent map[string]any) (config.Config, config.Config, error)
	ExecuteWorkflow(ctx context.Context, entryTeam string, workflowCtx config.Config) (map[string]any, error)
}

// Config holds the HTTP service settings.
type Config struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	EnableCORS   bool          `json:"enable_cors"`
	Debug        bool          `json:"debug"`
	EntryTeam    string        `json:"entry_team"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns the service defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8000,
		EnableCORS:   true,
		EntryTeam:    "discovery",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server runs workflows submitted over HTTP. Submissions return immediately
// with a workflow id; execution happens in a background goroutine and status
// is polled through the store.
type Server struct {
	workflows Workflows
	store     *Store
	cfg       *Config
	engine    *gin.Engine
	http      *http.Server
	logger    logging.Logger
	startTime time.Time
}

// New wires the service routes. No listener is opened until Start.
func New(workflows Workflows, cfg *Config, logger logging.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.EntryTeam == "" {
		cfg.EntryTeam = "discovery"
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		workflows: workflows,
		store:     NewStore(),
		cfg:       cfg,
		engine:    engine,
		logger:    logging.OrNop(logger),
		startTime: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	api := s.engine.Group("/api/v1")
	api.POST("/workflow", s.handleCreateWorkflow)
	api.GET("/workflow/:id", s.handleWorkflowStatus)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info("server: listening on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. Running workflows finish in the
// background and land in the store.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

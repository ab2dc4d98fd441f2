// Package api exposes the query orchestrator over HTTP: one endpoint to
// run a request through the agent graph, plus health, service discovery
// and run-history reads.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/datanaut-ai/datanaut/pkg/agent"
	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/history"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// QueryRunner walks one request through the query graph. *agent.Agent
// implements it.
type QueryRunner interface {
	Run(ctx context.Context, req agent.Request) (state.AgentState, error)
}

// HealthChecker reports per-database connectivity. *database.Manager
// implements it.
type HealthChecker interface {
	Health(ctx context.Context) map[string]database.HealthStatus
}

// ServiceDiscoverer lists live workers. *registry.Client implements it.
type ServiceDiscoverer interface {
	Discover(ctx context.Context) ([]registry.ServiceInfo, error)
}

// HistoryReader reads the run journal. *history.Store implements it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
	Ping(ctx context.Context) error
}

// Server wires the handlers to their backends. Agent and Config are
// required; the rest degrade gracefully when absent.
type Server struct {
	cfg       *config.Config
	agent     QueryRunner
	databases HealthChecker
	registry  ServiceDiscoverer
	history   HistoryReader
	logger    *slog.Logger
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, agent QueryRunner, databases HealthChecker, reg ServiceDiscoverer, hist HistoryReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		agent:     agent,
		databases: databases,
		registry:  reg,
		history:   hist,
		logger:    logger.With("component", "api"),
	}
}

// Routes builds the gin engine serving the API.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger))

	v1 := r.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
	v1.GET("/health", s.handleHealth)
	v1.GET("/services", s.handleServices)
	v1.GET("/runs", s.handleRuns)
	return r
}

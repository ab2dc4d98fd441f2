package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/version"
)

const healthCheckTimeout = 5 * time.Second

// handleHealth handles GET /api/v1/health. Any unreachable database makes
// the report unhealthy (503); a missing registry or history store only
// degrades it, since runs can complete without either.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := healthStatusHealthy
	checks := make(map[string]HealthCheck)
	degrade := func() {
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
	}

	var report map[string]database.HealthStatus
	if s.databases != nil && !s.cfg.DisableDatabases {
		report = s.databases.Health(ctx)
		down := 0
		for _, db := range report {
			if db.Error != "" {
				down++
			}
		}
		switch {
		case len(report) == 0:
			degrade()
			checks["databases"] = HealthCheck{Status: healthStatusDegraded, Message: "no databases configured"}
		case down == 0:
			checks["databases"] = HealthCheck{Status: healthStatusHealthy}
		default:
			status = healthStatusUnhealthy
			checks["databases"] = HealthCheck{
				Status:  healthStatusUnhealthy,
				Message: fmt.Sprintf("%d of %d databases unreachable", down, len(report)),
			}
		}
	}

	stats := s.cfg.Stats()
	if stats.LLMRoles > 0 {
		checks["llm"] = HealthCheck{
			Status:  healthStatusHealthy,
			Message: fmt.Sprintf("%d roles configured", stats.LLMRoles),
		}
	} else {
		degrade()
		checks["llm"] = HealthCheck{Status: healthStatusDegraded, Message: "no LLM roles configured"}
	}

	if s.registry != nil {
		if _, err := s.registry.Discover(ctx); err != nil {
			degrade()
			checks["registry"] = HealthCheck{Status: healthStatusDegraded, Message: err.Error()}
		} else {
			checks["registry"] = HealthCheck{Status: healthStatusHealthy}
		}
	} else if stats.CatalogServices > 0 {
		checks["registry"] = HealthCheck{
			Status:  healthStatusHealthy,
			Message: fmt.Sprintf("static catalog, %d services", stats.CatalogServices),
		}
	}

	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			degrade()
			checks["history"] = HealthCheck{Status: healthStatusDegraded, Message: err.Error()}
		} else {
			checks["history"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   version.GitCommit,
		Databases: report,
		Checks:    checks,
	})
}

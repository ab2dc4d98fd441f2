package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// handleRuns handles GET /api/v1/runs, newest first. Available only when a
// history store is configured.
func (s *Server) handleRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is not configured"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Run history read failed", "request_id", RequestIDFrom(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run history read failed"})
		return
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datanaut-ai/datanaut/pkg/agent"
)

// handleQuery handles POST /api/v1/query. A completed run is 200 whatever
// it found; an apologetic run carries its failure in the error field. Only
// rejected envelopes and aborted walks map to error statuses.
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	final, err := s.agent.Run(c.Request.Context(), agent.Request{
		UserRequest:        req.UserRequest,
		CustomSystemPrompt: req.CustomSystemPrompt,
		DisableSQLBlocking: req.DisableSQLBlocking,
		DatabaseName:       req.DatabaseName,
	})
	if err != nil {
		s.writeRunError(c, err, final.FinalResponse)
		return
	}

	resp := QueryResponse{
		RequestID:     RequestIDFrom(c),
		FinalResponse: final.FinalResponse,
		SQLQueries:    final.PreviousSQLQueries,
		RowCount:      len(final.DBResults),
		ServiceCalls:  len(final.MCPServiceResults),
		Documents:     documentViews(final.RAGDocuments),
		RetryCount:    final.RetryCount,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	if _, msg, ok := final.ActiveError(); ok {
		resp.Error = msg
	}
	c.JSON(http.StatusOK, resp)
}

// writeRunError maps a Run error to its status. The apologetic text still
// travels when the walk produced one.
func (s *Server) writeRunError(c *gin.Context, err error, finalResponse string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrPromptTooLong), errors.Is(err, agent.ErrUnknownDatabase):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		s.logger.Error("Query run aborted", "request_id", RequestIDFrom(c), "error", err)
	}

	body := gin.H{"error": err.Error()}
	if finalResponse != "" {
		body["final_response"] = finalResponse
	}
	c.JSON(status, body)
}

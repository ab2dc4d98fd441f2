package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/datanaut-ai/datanaut/pkg/agent"
	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/history"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// fakeAgent returns a scripted terminal state and records the request.
type fakeAgent struct {
	final state.AgentState
	err   error
	got   *agent.Request
}

func (f *fakeAgent) Run(_ context.Context, req agent.Request) (state.AgentState, error) {
	f.got = &req
	return f.final, f.err
}

// fakeHealth returns a fixed per-database report.
type fakeHealth struct {
	report map[string]database.HealthStatus
}

func (f *fakeHealth) Health(_ context.Context) map[string]database.HealthStatus {
	return f.report
}

// fakeDiscovery returns fixed services or an error.
type fakeDiscovery struct {
	services []registry.ServiceInfo
	err      error
}

func (f *fakeDiscovery) Discover(_ context.Context) ([]registry.ServiceInfo, error) {
	return f.services, f.err
}

// fakeHistory serves canned runs.
type fakeHistory struct {
	runs    []history.Run
	readErr error
	pingErr error
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Run, error) {
	f.limit = limit
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.runs, nil
}

func (f *fakeHistory) Ping(_ context.Context) error { return f.pingErr }

func testAPIConfig() *config.Config {
	return &config.Config{
		LLM: config.NewLLMConfig(map[config.LLMRole]*config.RoleConfig{
			config.RoleDefault: {Role: config.RoleDefault, Model: "test-model", Hostname: "localhost", Port: 8000},
		}),
	}
}

// serve runs one request through the full middleware and handler chain.
func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return serveRequest(s, req)
}

func serveRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRoutes_UnknownPathIs404(t *testing.T) {
	s := NewServer(testAPIConfig(), &fakeAgent{}, nil, nil, nil, testLogger())
	rec := serve(s, http.MethodGet, "/api/v2/query", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

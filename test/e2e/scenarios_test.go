package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datanaut-ai/datanaut/pkg/api"
	"github.com/datanaut-ai/datanaut/pkg/registry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// The full loop over real sockets: the API server runs the agent, the
// agent discovers the worker through the registry, calls it over the
// worker protocol, and synthesizes the scripted answer.
func TestQuery_ServiceOnlyRunOverHTTP(t *testing.T) {
	var gotParams map[string]any
	worker := StartWorker(t, "dns-worker-1", "dns", map[string]func(map[string]any) any{
		"resolve": func(params map[string]any) any {
			gotParams = params
			return map[string]any{"hostname": "db.internal", "address": "10.1.2.3"}
		},
	})

	analysis := `{
		"has_sufficient_info": true,
		"confidence_level": 0.9,
		"tool_calls": [
			{"service_id": "dns-worker-1", "method": "resolve", "params": {"hostname": "db.internal"}}
		]
	}`
	app := StartApp(t, []string{analysis, "db.internal resolves to 10.1.2.3."})
	require.NoError(t, app.RegistryClient.Register(t.Context(), worker))

	body := bytes.NewBufferString(`{"user_request": "what does db.internal resolve to?"}`)
	resp, err := http.Post(app.API.URL+"/api/v1/query", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, "db.internal resolves to 10.1.2.3.", out.FinalResponse)
	assert.Equal(t, 1, out.ServiceCalls)
	assert.Empty(t, out.SQLQueries)
	assert.Empty(t, out.Error)
	assert.NotEmpty(t, out.RequestID)

	assert.Equal(t, map[string]any{"hostname": "db.internal"}, gotParams)
	assert.Equal(t, 2, app.LLM.Calls(), "analysis and response synthesis only")
}

// A worker that stops heartbeating must drop out of discovery once its
// TTL elapses; heartbeats push the expiry forward.
func TestRegistry_SilentWorkerExpires(t *testing.T) {
	app := StartApp(t, nil)
	ctx := t.Context()

	silent := registry.ServiceInfo{ID: "search-worker-9", Host: "10.9.9.9", Port: 9999, Type: "search", TTLSeconds: 1}
	beating := registry.ServiceInfo{ID: "rag-worker-3", Host: "10.9.9.10", Port: 9999, Type: "rag", TTLSeconds: 2}
	require.NoError(t, app.RegistryClient.Register(ctx, silent))
	require.NoError(t, app.RegistryClient.Register(ctx, beating))

	ids := func() []string {
		services, err := app.RegistryClient.Discover(ctx)
		require.NoError(t, err)
		out := make([]string, 0, len(services))
		for _, svc := range services {
			out = append(out, svc.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"search-worker-9", "rag-worker-3"}, ids())

	time.Sleep(1500 * time.Millisecond)
	assert.ElementsMatch(t, []string{"rag-worker-3"}, ids(), "silent worker past its TTL, beating worker within it")
	require.NoError(t, app.RegistryClient.Heartbeat(ctx, "rag-worker-3"))

	time.Sleep(1500 * time.Millisecond)
	assert.ElementsMatch(t, []string{"rag-worker-3"}, ids(), "heartbeat moved the expiry forward")

	time.Sleep(1000 * time.Millisecond)
	assert.Empty(t, ids(), "no heartbeat for a full TTL")
}

// Package e2e boots a complete datanaut instance against in-process HTTP
// fakes: a real registry server, real workers behind httptest listeners,
// and a scripted chat-completions endpoint standing in for the models.
package e2e

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datanaut-ai/datanaut/pkg/adapter"
	"github.com/datanaut-ai/datanaut/pkg/agent"
	"github.com/datanaut-ai/datanaut/pkg/api"
	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/llm"
	"github.com/datanaut-ai/datanaut/pkg/registry"
)

// App is one booted instance. Every component listens on a real local
// port; only the model endpoint is scripted.
type App struct {
	Config         *config.Config
	LLM            *ScriptedModel
	RegistryClient *registry.Client
	Agent          *agent.Agent
	API            *httptest.Server

	t *testing.T
}

// StartApp boots registry, adapter, agent and API server with databases
// disabled. The script is consumed one completion per model call, in order.
func StartApp(t *testing.T, script []string) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := registry.NewStore(logger)
	registryServer := httptest.NewServer(registry.NewServer(store, logger).Routes())
	t.Cleanup(registryServer.Close)
	registryClient := registry.NewClient(registryServer.URL, logger)

	model := NewScriptedModel(t, script)
	cfg := &config.Config{
		LLM: config.NewLLMConfig(map[config.LLMRole]*config.RoleConfig{
			config.RoleDefault: model.RoleConfig(config.RoleDefault, "scripted-model"),
		}),
		DisableDatabases:      true,
		TerminateOnHarmfulSQL: true,
		RegistryURL:           registryServer.URL,
	}

	router, err := llm.NewRouter(cfg.LLM, logger)
	require.NoError(t, err)

	databases := database.NewManager(nil, logger)
	services := adapter.New(registryClient, nil, logger)
	t.Cleanup(func() { _ = services.Close() })

	orchestrator, err := agent.New(agent.Dependencies{
		Config:    cfg,
		LLM:       router,
		Databases: databases,
		Adapter:   services,
		Registry:  registryClient,
		Logger:    logger,
	})
	require.NoError(t, err)

	apiServer := httptest.NewServer(api.NewServer(cfg, orchestrator, databases, registryClient, nil, logger).Routes())
	t.Cleanup(apiServer.Close)

	return &App{
		Config:         cfg,
		LLM:            model,
		RegistryClient: registryClient,
		Agent:          orchestrator,
		API:            apiServer,
		t:              t,
	}
}

// StartWorker serves the worker protocol: POST / with {action, parameters},
// answered by the handler for that action. Unknown actions produce the
// error envelope. The returned ServiceInfo is ready to register.
func StartWorker(t *testing.T, id, serviceType string, handlers map[string]func(params map[string]any) any) registry.ServiceInfo {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action     string         `json:"action"`
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler, ok := handlers[req.Action]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "error",
				"error":  "unsupported action: " + req.Action,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"result": handler(req.Parameters),
		})
	}))
	t.Cleanup(server.Close)

	host, port := splitHostPort(t, server.URL)
	return registry.ServiceInfo{
		ID:   id,
		Host: host,
		Port: port,
		Type: serviceType,
	}
}

// ScriptedModel is an httptest chat-completions endpoint that pops one
// scripted reply per call.
type ScriptedModel struct {
	server *httptest.Server

	mu     sync.Mutex
	script []string
	calls  int
}

// NewScriptedModel starts the endpoint. Calls beyond the script fail the
// test immediately so a looping agent cannot hang the run.
func NewScriptedModel(t *testing.T, script []string) *ScriptedModel {
	t.Helper()
	m := &ScriptedModel{script: script}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.calls >= len(m.script) {
			t.Errorf("model call %d exceeds the script (%d entries)", m.calls+1, len(m.script))
			http.Error(w, "script exhausted", http.StatusBadRequest)
			return
		}
		reply := m.script[m.calls]
		m.calls++

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(m.server.Close)
	return m
}

// RoleConfig points a role at the scripted endpoint.
func (m *ScriptedModel) RoleConfig(role config.LLMRole, modelName string) *config.RoleConfig {
	u, _ := url.Parse(m.server.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return &config.RoleConfig{
		Role:     role,
		Provider: config.LLMProviderLMStudio,
		Model:    modelName,
		Hostname: host,
		Port:     port,
		APIPath:  "/v1",
	}
}

// Calls reports how many completions the agent requested.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/version"
)

// ProtocolMCP marks services that speak MCP instead of plain HTTP.
// Workers advertise it through the "protocol" metadata key.
const ProtocolMCP = "mcp"

// mcpDialer keeps one MCP session per service and re-dials when a
// cached session turns out to be dead.
type mcpDialer struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*mcpsdk.ClientSession

	// newTransport builds the wire transport for a service. Swapped in
	// tests for in-memory transports.
	newTransport func(svc registry.ServiceInfo) mcpsdk.Transport
}

func newMCPDialer(logger *slog.Logger) *mcpDialer {
	return &mcpDialer{
		logger:   logger,
		sessions: make(map[string]*mcpsdk.ClientSession),
		newTransport: func(svc registry.ServiceInfo) mcpsdk.Transport {
			return &mcpsdk.StreamableClientTransport{Endpoint: svc.Endpoint()}
		},
	}
}

// call invokes action as an MCP tool on the service. A failure on a
// cached session is retried once on a fresh one, since workers restart
// and leave us holding dead connections.
func (d *mcpDialer) call(ctx context.Context, svc registry.ServiceInfo, action string, params map[string]any) (any, error) {
	session, cached, err := d.session(ctx, svc)
	if err != nil {
		return nil, err
	}

	args := &mcpsdk.CallToolParams{Name: action, Arguments: params}
	result, err := session.CallTool(ctx, args)
	if err != nil && cached && ctx.Err() == nil {
		d.logger.Warn("MCP call failed on cached session, re-dialing",
			"service_id", svc.ID,
			"action", action,
			"error", err)
		d.drop(svc.ID, session)
		if session, _, err = d.session(ctx, svc); err != nil {
			return nil, err
		}
		result, err = session.CallTool(ctx, args)
	}
	if err != nil {
		return nil, fmt.Errorf("MCP call %q on service %q: %w", action, svc.ID, err)
	}

	text := textContent(result)
	if result.IsError {
		return nil, fmt.Errorf("service %q reported error: %s", svc.ID, errorText(text))
	}
	payload := decodePayload(text)
	if msg, failed := workerError(payload); failed {
		return nil, fmt.Errorf("service %q reported error: %s", svc.ID, msg)
	}
	return payload, nil
}

// session returns the cached session for the service or dials a new
// one. The second return reports whether the session came from cache.
func (d *mcpDialer) session(ctx context.Context, svc registry.ServiceInfo) (*mcpsdk.ClientSession, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if session, ok := d.sessions[svc.ID]; ok {
		return session, true, nil
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)
	session, err := client.Connect(ctx, d.newTransport(svc), nil)
	if err != nil {
		return nil, false, fmt.Errorf("connect to MCP service %q: %w", svc.ID, err)
	}
	d.sessions[svc.ID] = session
	return session, false, nil
}

// drop closes a session and forgets it unless a concurrent caller
// already replaced it.
func (d *mcpDialer) drop(id string, session *mcpsdk.ClientSession) {
	d.mu.Lock()
	if d.sessions[id] == session {
		delete(d.sessions, id)
	}
	d.mu.Unlock()
	_ = session.Close()
}

// Close tears down every cached session.
func (d *mcpDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for id, session := range d.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close MCP session %q: %w", id, err)
		}
		delete(d.sessions, id)
	}
	return firstErr
}

// textContent concatenates the text blocks of a tool result.
func textContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodePayload parses tool output as JSON when possible and falls back
// to the raw text.
func decodePayload(text string) any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	var payload any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return trimmed
	}
	return payload
}

func errorText(text string) string {
	if s := strings.TrimSpace(text); s != "" {
		return s
	}
	return "unspecified error"
}

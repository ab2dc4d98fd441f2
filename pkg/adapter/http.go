package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/datanaut-ai/datanaut/pkg/registry"
)

// workerRequest is the uniform body POSTed to plain HTTP workers.
type workerRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// postAction sends one action to an HTTP worker and returns the decoded
// response payload.
func (a *Adapter) postAction(ctx context.Context, svc registry.ServiceInfo, action string, params map[string]any) (any, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	// Workers receive the caller's text verbatim. HTML escaping would
	// turn "<" and "&" inside queries into < noise.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(workerRequest{Action: action, Parameters: params}); err != nil {
		return nil, fmt.Errorf("encode request for %q: %w", svc.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.Endpoint()+"/", &body)
	if err != nil {
		return nil, fmt.Errorf("create request for %q: %w", svc.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call service %q: %w", svc.ID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %q: %w", svc.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service %q returned HTTP %d: %s", svc.ID, resp.StatusCode, snippet(raw))
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Some workers answer with plain text. Pass it through rather
		// than failing the whole call.
		return strings.TrimSpace(string(raw)), nil
	}
	if msg, failed := workerError(payload); failed {
		return nil, fmt.Errorf("service %q reported error: %s", svc.ID, msg)
	}
	return payload, nil
}

// workerError detects the {"status": "error", "error": "..."} envelope.
func workerError(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	status, _ := m["status"].(string)
	if status != "error" {
		return "", false
	}
	if msg, ok := m["error"].(string); ok && msg != "" {
		return msg, true
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg, true
	}
	return "unspecified error", true
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}

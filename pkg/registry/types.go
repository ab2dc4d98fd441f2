package registry

import (
	"fmt"
	"strings"
	"time"
)

// Default heartbeat cadence and record lifetime, in seconds.
const (
	DefaultHeartbeatInterval = 20
	DefaultTTLSeconds        = 45
)

// ServiceInfo describes one registered worker. Metadata is an open map; the
// well-known keys are "capabilities" (list of action names), "started_at",
// "protocol" ("mcp" for workers speaking the Model Context Protocol), and
// "masking" (redaction pattern groups to apply to this worker's results).
type ServiceInfo struct {
	ID            string         `json:"id"`
	Host          string         `json:"host"`
	Port          int            `json:"port"`
	Type          string         `json:"type"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	TTLSeconds    int            `json:"ttl_seconds"`
	LastHeartbeat time.Time      `json:"last_heartbeat,omitempty"`
}

// Endpoint returns the worker's base URL.
func (s ServiceInfo) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// Capabilities returns the declared action names, if any.
func (s ServiceInfo) Capabilities() []string {
	raw, ok := s.Metadata["capabilities"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		caps := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				caps = append(caps, str)
			}
		}
		return caps
	default:
		return nil
	}
}

// Protocol returns the worker dialect, empty for the plain HTTP action
// endpoint.
func (s ServiceInfo) Protocol() string {
	if p, ok := s.Metadata["protocol"].(string); ok {
		return p
	}
	return ""
}

// MaskingGroups returns the redaction pattern groups declared for this
// worker. Accepts a list or a comma-separated string.
func (s ServiceInfo) MaskingGroups() []string {
	raw, ok := s.Metadata["masking"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		var groups []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				groups = append(groups, name)
			}
		}
		return groups
	case []string:
		return v
	case []any:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				groups = append(groups, str)
			}
		}
		return groups
	default:
		return nil
	}
}

// TTL returns the record lifetime as a duration, applying the default when
// the record carries none.
func (s ServiceInfo) TTL() time.Duration {
	ttl := s.TTLSeconds
	if ttl <= 0 {
		ttl = DefaultTTLSeconds
	}
	return time.Duration(ttl) * time.Second
}

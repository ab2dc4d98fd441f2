// Package registry implements the service directory: an HTTP client for
// workers and orchestrators, a background heartbeater that keeps a
// registration alive, and the in-memory server the standalone registry
// binary runs.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the service registry over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a registry client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// BaseURL returns the registry endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register announces a worker to the registry. A zero TTL is replaced with
// the default before sending.
func (c *Client) Register(ctx context.Context, info ServiceInfo) error {
	if info.TTLSeconds <= 0 {
		info.TTLSeconds = DefaultTTLSeconds
	}
	status, err := c.post(ctx, "/register", info)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("registry returned HTTP %d for /register", status)
	}
	return nil
}

// Heartbeat refreshes the registration lifetime. A registry that lost the
// record answers 404, surfaced as ErrNotRegistered so the caller can
// re-register.
func (c *Client) Heartbeat(ctx context.Context, id string) error {
	status, err := c.post(ctx, "/heartbeat", idRequest{ID: id})
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %q", ErrNotRegistered, id)
	default:
		return fmt.Errorf("registry returned HTTP %d for /heartbeat", status)
	}
}

// Discover returns every live registered service.
func (c *Client) Discover(ctx context.Context) ([]ServiceInfo, error) {
	return c.discover(ctx, "")
}

// DiscoverByType returns the live services of one type.
func (c *Client) DiscoverByType(ctx context.Context, serviceType string) ([]ServiceInfo, error) {
	return c.discover(ctx, serviceType)
}

// Deregister removes the registration. A record the registry no longer
// holds is not an error.
func (c *Client) Deregister(ctx context.Context, id string) error {
	status, err := c.post(ctx, "/deregister", idRequest{ID: id})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("registry returned HTTP %d for /deregister", status)
	}
	return nil
}

type idRequest struct {
	ID string `json:"id" binding:"required"`
}

type servicesResponse struct {
	Services []ServiceInfo `json:"services"`
}

func (c *Client) discover(ctx context.Context, serviceType string) ([]ServiceInfo, error) {
	endpoint := c.baseURL + "/services"
	if serviceType != "" {
		endpoint += "?type=" + url.QueryEscape(serviceType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create discover request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call registry /services: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned HTTP %d for /services", resp.StatusCode)
	}

	var payload servicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode services response: %w", err)
	}
	return payload.Services, nil
}

// post sends a JSON body and returns the response status code. Transport
// failures are errors; HTTP status interpretation is left to the caller.
func (c *Client) post(ctx context.Context, path string, body any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call registry %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

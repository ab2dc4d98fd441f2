// Package adapter gives the agent one calling convention for every
// external worker service. A call names a service, an action and a
// parameter map; the adapter resolves the service through the registry
// (falling back to a static catalog), speaks the service's protocol,
// strips the response envelope, scrubs secrets per the service's
// masking metadata and returns a uniform ServiceResult. Failures never
// surface as Go errors: they come back as a result with status error so
// one dead worker cannot sink a whole enrichment batch.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/datanaut-ai/datanaut/pkg/masking"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// DefaultCallTimeout caps a single worker call.
const DefaultCallTimeout = 30 * time.Second

// Resolver locates services. *registry.Client implements it.
type Resolver interface {
	Discover(ctx context.Context) ([]registry.ServiceInfo, error)
	DiscoverByType(ctx context.Context, serviceType string) ([]registry.ServiceInfo, error)
}

// Adapter calls worker services over their native protocol.
type Adapter struct {
	resolver   Resolver
	static     []registry.ServiceInfo
	httpClient *http.Client
	mcp        *mcpDialer
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Adapter. resolver may be nil when only the static
// catalog is in play; static may be empty when everything comes from
// the registry.
func New(resolver Resolver, static []registry.ServiceInfo, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "adapter")
	return &Adapter{
		resolver:   resolver,
		static:     static,
		httpClient: &http.Client{Timeout: DefaultCallTimeout},
		mcp:        newMCPDialer(logger),
		timeout:    DefaultCallTimeout,
		logger:     logger,
	}
}

// SetCallTimeout changes the per-call cap. Zero or negative leaves the
// default in place.
func (a *Adapter) SetCallTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	a.timeout = d
	a.httpClient.Timeout = d
}

// Call resolves serviceID and invokes action on it. The outcome, good
// or bad, lands in the returned ServiceResult.
func (a *Adapter) Call(ctx context.Context, serviceID, action string, params map[string]any) state.ServiceResult {
	res := state.ServiceResult{
		ServiceID:  serviceID,
		Action:     action,
		Parameters: params,
		Timestamp:  time.Now(),
	}
	svc, err := a.resolve(ctx, serviceID)
	if err != nil {
		return a.failure(res, state.ErrorKindExecution, err)
	}
	return a.callService(ctx, svc, res)
}

// CallByType resolves the first service of the given type and invokes
// action on it.
func (a *Adapter) CallByType(ctx context.Context, serviceType, action string, params map[string]any) state.ServiceResult {
	res := state.ServiceResult{
		ServiceID:  serviceType,
		Action:     action,
		Parameters: params,
		Timestamp:  time.Now(),
	}
	svc, err := a.resolveByType(ctx, serviceType)
	if err != nil {
		return a.failure(res, state.ErrorKindExecution, err)
	}
	res.ServiceID = svc.ID
	return a.callService(ctx, svc, res)
}

// CallService invokes action on an already-resolved service.
func (a *Adapter) CallService(ctx context.Context, svc registry.ServiceInfo, action string, params map[string]any) state.ServiceResult {
	res := state.ServiceResult{
		ServiceID:  svc.ID,
		Action:     action,
		Parameters: params,
		Timestamp:  time.Now(),
	}
	return a.callService(ctx, svc, res)
}

func (a *Adapter) callService(ctx context.Context, svc registry.ServiceInfo, res state.ServiceResult) state.ServiceResult {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	var payload any
	var err error
	if svc.Protocol() == ProtocolMCP {
		payload, err = a.mcp.call(callCtx, svc, res.Action, res.Parameters)
	} else {
		payload, err = a.postAction(callCtx, svc, res.Action, res.Parameters)
	}
	if err != nil {
		kind := state.Classify(err)
		if kind == state.ErrorKindExecution && callCtx.Err() != nil {
			kind = state.ErrorKindTimeout
		}
		return a.failure(res, kind, err)
	}

	a.logger.Debug("Service call completed",
		"service_id", svc.ID,
		"action", res.Action,
		"duration_ms", time.Since(start).Milliseconds())
	res.Status = state.CallStatusSuccess
	res.Result = Normalize(payload)
	if groups := svc.MaskingGroups(); len(groups) > 0 {
		res.Result = masking.ForGroups(groups...).MaskValue(res.Result)
	}
	return res
}

// Close releases cached protocol sessions.
func (a *Adapter) Close() error {
	return a.mcp.Close()
}

// resolve looks a service up in the registry first and falls back to
// the static catalog when the registry is down or does not know it.
func (a *Adapter) resolve(ctx context.Context, serviceID string) (registry.ServiceInfo, error) {
	if a.resolver != nil {
		services, err := a.resolver.Discover(ctx)
		if err != nil {
			a.logger.Warn("Registry lookup failed, falling back to static catalog",
				"service_id", serviceID, "error", err)
		} else {
			for _, svc := range services {
				if svc.ID == serviceID {
					return svc, nil
				}
			}
		}
	}
	for _, svc := range a.static {
		if svc.ID == serviceID {
			return svc, nil
		}
	}
	return registry.ServiceInfo{}, fmt.Errorf("%w: %q", ErrServiceNotFound, serviceID)
}

func (a *Adapter) resolveByType(ctx context.Context, serviceType string) (registry.ServiceInfo, error) {
	if a.resolver != nil {
		services, err := a.resolver.DiscoverByType(ctx, serviceType)
		if err != nil {
			a.logger.Warn("Registry lookup failed, falling back to static catalog",
				"service_type", serviceType, "error", err)
		} else if len(services) > 0 {
			return services[0], nil
		}
	}
	for _, svc := range a.static {
		if svc.Type == serviceType {
			return svc, nil
		}
	}
	return registry.ServiceInfo{}, fmt.Errorf("%w: no service of type %q", ErrServiceNotFound, serviceType)
}

func (a *Adapter) failure(res state.ServiceResult, kind state.ErrorKind, err error) state.ServiceResult {
	a.logger.Warn("Service call failed",
		"service_id", res.ServiceID,
		"action", res.Action,
		"error_kind", string(kind),
		"error", err)
	res.Status = state.CallStatusError
	res.Error = err.Error()
	res.ErrorKind = kind
	return res
}

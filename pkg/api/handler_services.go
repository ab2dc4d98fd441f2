package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datanaut-ai/datanaut/pkg/registry"
)

// handleServices handles GET /api/v1/services: live discovery merged with
// the static catalog, the same view the planner sees. An optional ?type=
// filters the result.
func (s *Server) handleServices(c *gin.Context) {
	var services []registry.ServiceInfo
	if s.registry != nil {
		discovered, err := s.registry.Discover(c.Request.Context())
		if err != nil {
			s.logger.Warn("Service discovery failed, serving the catalog only", "error", err)
		} else {
			services = discovered
		}
	}
	if s.cfg.Catalog != nil {
		services = mergeCatalog(services, s.cfg.Catalog.ServiceInfos())
	}

	if serviceType := c.Query("type"); serviceType != "" {
		filtered := services[:0]
		for _, svc := range services {
			if svc.Type == serviceType {
				filtered = append(filtered, svc)
			}
		}
		services = filtered
	}

	c.JSON(http.StatusOK, ServicesResponse{Services: services, Count: len(services)})
}

// mergeCatalog appends catalog entries whose ids discovery did not return.
func mergeCatalog(discovered, catalog []registry.ServiceInfo) []registry.ServiceInfo {
	seen := make(map[string]struct{}, len(discovered))
	for _, svc := range discovered {
		seen[svc.ID] = struct{}{}
	}
	for _, svc := range catalog {
		if _, ok := seen[svc.ID]; !ok {
			discovered = append(discovered, svc)
		}
	}
	return discovered
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datanaut-ai/datanaut/pkg/registry"
)

// ServiceCatalog is the optional static worker catalog for registry-less
// deployments. Entries look like registry discoveries to the rest of the
// engine.
type ServiceCatalog struct {
	Services []CatalogService `yaml:"services"`
}

// CatalogService is one statically declared worker.
type CatalogService struct {
	ID           string         `yaml:"id"`
	Host         string         `yaml:"host"`
	Port         int            `yaml:"port"`
	Type         string         `yaml:"type"`
	Protocol     string         `yaml:"protocol,omitempty"`
	Capabilities []string       `yaml:"capabilities,omitempty"`
	Masking      []string       `yaml:"masking,omitempty"`
	Metadata     map[string]any `yaml:"metadata,omitempty"`
}

// LoadServiceCatalog reads and expands the catalog YAML at path.
func LoadServiceCatalog(path string) (*ServiceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var catalog ServiceCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &catalog, nil
}

// ServiceInfos converts catalog entries into the discovery shape. Catalog
// services carry no heartbeat and never expire.
func (c *ServiceCatalog) ServiceInfos() []registry.ServiceInfo {
	if c == nil {
		return nil
	}

	infos := make([]registry.ServiceInfo, 0, len(c.Services))
	for _, svc := range c.Services {
		metadata := make(map[string]any, len(svc.Metadata)+2)
		for k, v := range svc.Metadata {
			metadata[k] = v
		}
		if len(svc.Capabilities) > 0 {
			metadata["capabilities"] = svc.Capabilities
		}
		if svc.Protocol != "" {
			metadata["protocol"] = svc.Protocol
		}
		if len(svc.Masking) > 0 {
			metadata["masking"] = svc.Masking
		}

		infos = append(infos, registry.ServiceInfo{
			ID:       svc.ID,
			Host:     svc.Host,
			Port:     svc.Port,
			Type:     svc.Type,
			Metadata: metadata,
		})
	}
	return infos
}

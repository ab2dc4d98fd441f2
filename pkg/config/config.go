package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Config is the umbrella configuration object assembled from the
// environment. This is the primary object returned by Load() and used
// throughout the application.
type Config struct {
	// Queryable databases keyed by name
	Databases map[string]*DatabaseConfig

	// Per-role LLM endpoints
	LLM *LLMConfig

	// Retrieval settings forwarded to the rag worker
	RAG *RAGConfig

	// Run-history retention; consulted only when history is enabled
	Retention *RetentionConfig

	// Static worker catalog; nil when SERVICE_CATALOG_PATH is unset
	Catalog *ServiceCatalog

	// Behavior toggles
	DisableDatabases      bool
	UseSecurityLLM        bool
	TerminateOnHarmfulSQL bool

	// Registry endpoint; empty disables discovery
	RegistryURL string

	// Optional run-history store; empty disables persistence
	HistoryDatabaseURL string

	ListenAddr string
	LogLevel   string
}

// DisableSQLBlocking is the default for a run that does not set the flag in
// its request envelope. Blocking is on unless termination on harmful SQL was
// switched off.
func (c *Config) DisableSQLBlocking() bool {
	return !c.TerminateOnHarmfulSQL
}

// Database retrieves a database configuration by name.
func (c *Config) Database(name string) (*DatabaseConfig, error) {
	db, ok := c.Databases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}
	return db, nil
}

// DatabaseNames returns the configured database names, sorted.
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SlogLevel parses LogLevel into a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Databases       int
	LLMRoles        int
	CatalogServices int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{Databases: len(c.Databases)}
	if c.LLM != nil {
		s.LLMRoles = c.LLM.Len()
	}
	if c.Catalog != nil {
		s.CatalogServices = len(c.Catalog.Services)
	}
	return s
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Load assembles, validates, and returns ready-to-use configuration from
// the environment. This is the primary entry point for configuration
// loading; main loads the optional .env file (godotenv) before calling it.
//
// Steps performed:
//  1. Discover databases (DATABASE_URL + DB_<NAME>_* variables)
//  2. Resolve per-role LLM endpoints (<ROLE>_LLM_* variables)
//  3. Read RAG settings and behavior toggles
//  4. Load the static service catalog when SERVICE_CATALOG_PATH is set
//  5. Validate everything
//  6. Return Config ready for use
func Load(ctx context.Context) (*Config, error) {
	log := slog.Default()
	log.Info("Loading configuration from environment")

	cfg, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration loaded",
		"databases", stats.Databases,
		"llm_roles", stats.LLMRoles,
		"catalog_services", stats.CatalogServices,
		"databases_disabled", cfg.DisableDatabases,
		"registry_url", cfg.RegistryURL)

	return cfg, nil
}

func load(_ context.Context) (*Config, error) {
	databases, err := DatabasesFromEnv()
	if err != nil {
		return nil, err
	}

	llm, err := LLMFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Databases:             databases,
		LLM:                   llm,
		RAG:                   RAGFromEnv(),
		Retention:             RetentionFromEnv(),
		DisableDatabases:      boolEnv("DISABLE_DATABASES", false),
		UseSecurityLLM:        boolEnv("USE_SECURITY_LLM", false),
		TerminateOnHarmfulSQL: boolEnv("TERMINATE_ON_POTENTIALLY_HARMFUL_SQL", true),
		RegistryURL:           os.Getenv("MCP_REGISTRY_URL"),
		HistoryDatabaseURL:    os.Getenv("HISTORY_DATABASE_URL"),
		ListenAddr:            getEnvOrDefault("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", DefaultLogLevel),
	}

	if path := os.Getenv("SERVICE_CATALOG_PATH"); path != "" {
		catalog, err := LoadServiceCatalog(path)
		if err != nil {
			return nil, err
		}
		cfg.Catalog = catalog
	}

	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

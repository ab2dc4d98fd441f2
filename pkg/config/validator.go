package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration comprehensively with clear error messages
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, stops at first error)
func (v *Validator) ValidateAll() error {
	if err := v.validateDatabases(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}

	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("LLM validation failed: %w", err)
	}

	if err := v.validateRAG(); err != nil {
		return fmt.Errorf("RAG validation failed: %w", err)
	}

	if err := v.validateCatalog(); err != nil {
		return fmt.Errorf("service catalog validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateDatabases() error {
	for name, db := range v.cfg.Databases {
		if !db.Type.IsValid() {
			return NewValidationError("database", name, "type", fmt.Errorf("%w: %q", ErrUnknownDatabaseType, db.Type))
		}

		// A full URL stands on its own; the quintuple needs its parts.
		if db.URL != "" {
			continue
		}

		switch db.Type {
		case DatabaseTypeSQLite:
			if db.Database == "" {
				return NewValidationError("database", name, "name", fmt.Errorf("%w: sqlite file path", ErrMissingRequiredField))
			}
		default:
			if db.Hostname == "" {
				return NewValidationError("database", name, "hostname", ErrMissingRequiredField)
			}
			if db.Port <= 0 || db.Port > 65535 {
				return NewValidationError("database", name, "port", fmt.Errorf("%w: %d", ErrInvalidValue, db.Port))
			}
			if db.Database == "" {
				return NewValidationError("database", name, "name", ErrMissingRequiredField)
			}
		}
	}

	return nil
}

func (v *Validator) validateLLM() error {
	if v.cfg.LLM == nil || !v.cfg.LLM.Has(RoleDefault) {
		return NewValidationError("llm_role", string(RoleDefault), "", ErrRoleNotConfigured)
	}

	for _, role := range v.cfg.LLM.Configured() {
		cfg, err := v.cfg.LLM.ForRole(role)
		if err != nil {
			return err
		}
		id := string(role)

		if !cfg.Provider.IsValid() {
			return NewValidationError("llm_role", id, "provider", fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider))
		}
		if cfg.Model == "" {
			return NewValidationError("llm_role", id, "model", ErrMissingRequiredField)
		}
		if cfg.Hostname == "" {
			return NewValidationError("llm_role", id, "hostname", ErrMissingRequiredField)
		}
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return NewValidationError("llm_role", id, "port", fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Port))
		}
		if !strings.HasPrefix(cfg.APIPath, "/") {
			return NewValidationError("llm_role", id, "api_path", fmt.Errorf("%w: %q must start with '/'", ErrInvalidValue, cfg.APIPath))
		}
	}

	return nil
}

func (v *Validator) validateRAG() error {
	rag := v.cfg.RAG
	if rag == nil {
		return nil
	}

	if rag.TopKResults < 1 {
		return NewValidationError("rag", "settings", "top_k_results", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if rag.SimilarityThreshold < 0 || rag.SimilarityThreshold > 1 {
		return NewValidationError("rag", "settings", "similarity_threshold", fmt.Errorf("%w: must be within [0, 1]", ErrInvalidValue))
	}
	if rag.ChunkSize < 1 {
		return NewValidationError("rag", "settings", "chunk_size", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if rag.ChunkOverlap < 0 || rag.ChunkOverlap >= rag.ChunkSize {
		return NewValidationError("rag", "settings", "chunk_overlap", fmt.Errorf("%w: must be non-negative and smaller than chunk_size", ErrInvalidValue))
	}

	return nil
}

func (v *Validator) validateCatalog() error {
	if v.cfg.Catalog == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(v.cfg.Catalog.Services))
	for i, svc := range v.cfg.Catalog.Services {
		id := svc.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
			return NewValidationError("catalog", id, "id", ErrMissingRequiredField)
		}
		if _, dup := seen[id]; dup {
			return NewValidationError("catalog", id, "id", fmt.Errorf("%w: duplicate service id", ErrInvalidValue))
		}
		seen[id] = struct{}{}

		if svc.Host == "" {
			return NewValidationError("catalog", id, "host", ErrMissingRequiredField)
		}
		if svc.Port <= 0 || svc.Port > 65535 {
			return NewValidationError("catalog", id, "port", fmt.Errorf("%w: %d", ErrInvalidValue, svc.Port))
		}
		if svc.Type == "" {
			return NewValidationError("catalog", id, "type", ErrMissingRequiredField)
		}
	}

	return nil
}

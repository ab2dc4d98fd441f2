package config

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogNotFound indicates the static service catalog file was not found
	ErrCatalogNotFound = errors.New("service catalog file not found")

	// ErrInvalidYAML indicates YAML parsing failed
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrDatabaseNotFound indicates a database name is not configured
	ErrDatabaseNotFound = errors.New("database not configured")

	// ErrRoleNotConfigured indicates no LLM endpoint covers the requested role
	ErrRoleNotConfigured = errors.New("LLM role not configured")

	// ErrUnknownProvider indicates an unrecognized LLM provider name
	ErrUnknownProvider = errors.New("unknown LLM provider")

	// ErrUnknownDatabaseType indicates an unrecognized database type
	ErrUnknownDatabaseType = errors.New("unknown database type")

	// ErrMissingRequiredField indicates a required field is missing
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field has an invalid value
	ErrInvalidValue = errors.New("invalid field value")
)

// ValidationError wraps configuration validation errors with context
type ValidationError struct {
	Component string // Component being validated (database, llm_role, rag, catalog)
	ID        string // ID of the component
	Field     string // Field name (optional)
	Err       error  // Underlying error
}

// Error returns formatted error message
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s '%s': field '%s': %v", e.Component, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s '%s': %v", e.Component, e.ID, e.Err)
}

// Unwrap returns the underlying error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{
		Component: component,
		ID:        id,
		Field:     field,
		Err:       err,
	}
}

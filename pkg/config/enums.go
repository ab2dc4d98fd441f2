package config

import "strings"

// DatabaseType defines supported SQL engines
type DatabaseType string

const (
	// DatabaseTypePostgreSQL is PostgreSQL via the pgx stdlib driver
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
	// DatabaseTypeMySQL is MySQL/MariaDB
	DatabaseTypeMySQL DatabaseType = "mysql"
	// DatabaseTypeSQLite is a local SQLite file
	DatabaseTypeSQLite DatabaseType = "sqlite"
	// DatabaseTypeOracle is Oracle via go-ora
	DatabaseTypeOracle DatabaseType = "oracle"
	// DatabaseTypeMSSQL is Microsoft SQL Server
	DatabaseTypeMSSQL DatabaseType = "mssql"
)

// IsValid checks if the database type is valid
func (t DatabaseType) IsValid() bool {
	switch t {
	case DatabaseTypePostgreSQL,
		DatabaseTypeMySQL,
		DatabaseTypeSQLite,
		DatabaseTypeOracle,
		DatabaseTypeMSSQL:
		return true
	default:
		return false
	}
}

// DriverName returns the database/sql driver name registered for the type
func (t DatabaseType) DriverName() string {
	switch t {
	case DatabaseTypePostgreSQL:
		return "pgx"
	case DatabaseTypeMySQL:
		return "mysql"
	case DatabaseTypeSQLite:
		return "sqlite3"
	case DatabaseTypeOracle:
		return "oracle"
	case DatabaseTypeMSSQL:
		return "sqlserver"
	default:
		return ""
	}
}

// ParseDatabaseType normalizes a database type string, accepting the common
// aliases that show up in connection URLs
func ParseDatabaseType(s string) (DatabaseType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pgsql":
		return DatabaseTypePostgreSQL, true
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, true
	case "sqlite", "sqlite3", "file":
		return DatabaseTypeSQLite, true
	case "oracle", "ora":
		return DatabaseTypeOracle, true
	case "mssql", "sqlserver":
		return DatabaseTypeMSSQL, true
	default:
		return "", false
	}
}

// LLMProvider defines supported LLM providers. All of them are addressed as
// OpenAI-compatible chat-completion endpoints; the provider choice selects
// the default host, API path, and API-key variable.
type LLMProvider string

const (
	// LLMProviderOpenAI is the OpenAI API
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderDeepSeek is the DeepSeek API
	LLMProviderDeepSeek LLMProvider = "deepseek"
	// LLMProviderQwen is Alibaba DashScope in OpenAI-compatible mode
	LLMProviderQwen LLMProvider = "qwen"
	// LLMProviderLMStudio is a local LM Studio server
	LLMProviderLMStudio LLMProvider = "lmstudio"
	// LLMProviderOllama is a local Ollama server
	LLMProviderOllama LLMProvider = "ollama"
	// LLMProviderGigaChat is the Sber GigaChat API
	LLMProviderGigaChat LLMProvider = "gigachat"
)

// IsValid checks if the LLM provider is valid
func (p LLMProvider) IsValid() bool {
	switch p {
	case LLMProviderOpenAI,
		LLMProviderDeepSeek,
		LLMProviderQwen,
		LLMProviderLMStudio,
		LLMProviderOllama,
		LLMProviderGigaChat:
		return true
	default:
		return false
	}
}

// ParseLLMProvider normalizes a provider name from the environment.
// Spacing, case, and separators are ignored so "LM Studio", "lm-studio",
// and "lmstudio" all resolve to the same provider.
func ParseLLMProvider(s string) (LLMProvider, bool) {
	normalized := strings.ToLower(s)
	for _, cut := range []string{" ", "-", "_", "."} {
		normalized = strings.ReplaceAll(normalized, cut, "")
	}
	p := LLMProvider(normalized)
	if p.IsValid() {
		return p, true
	}
	return "", false
}

// LLMRole names one of the engine's LLM call sites. Every role can point at
// its own provider and model; unset roles fall back to DEFAULT.
type LLMRole string

const (
	// RoleDefault is the fallback for all unconfigured roles
	RoleDefault LLMRole = "DEFAULT"
	// RoleSQL generates and refines SQL
	RoleSQL LLMRole = "SQL"
	// RoleResponse writes the final user-facing answer
	RoleResponse LLMRole = "RESPONSE"
	// RolePrompt builds intermediate prompts and widening strategies
	RolePrompt LLMRole = "PROMPT"
	// RoleMCP plans service tool calls
	RoleMCP LLMRole = "MCP"
	// RoleSecurity judges SQL safety
	RoleSecurity LLMRole = "SECURITY"
)

// IsValid checks if the LLM role is valid
func (r LLMRole) IsValid() bool {
	switch r {
	case RoleDefault, RoleSQL, RoleResponse, RolePrompt, RoleMCP, RoleSecurity:
		return true
	default:
		return false
	}
}

// LLMRoles returns all roles in configuration-scan order
func LLMRoles() []LLMRole {
	return []LLMRole{RoleDefault, RoleSQL, RoleResponse, RolePrompt, RoleMCP, RoleSecurity}
}

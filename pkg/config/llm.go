package config

import (
	"fmt"
	"os"
	"strconv"
)

// providerEndpoint is the default endpoint shape of one provider family.
type providerEndpoint struct {
	Hostname string
	Port     int
	APIPath  string
	KeyEnv   string // environment variable holding the API key; empty for local servers
}

var providerEndpoints = map[LLMProvider]providerEndpoint{
	LLMProviderOpenAI:   {Hostname: "api.openai.com", Port: 443, APIPath: "/v1", KeyEnv: "OPENAI_API_KEY"},
	LLMProviderDeepSeek: {Hostname: "api.deepseek.com", Port: 443, APIPath: "/v1", KeyEnv: "DEEPSEEK_API_KEY"},
	LLMProviderQwen:     {Hostname: "dashscope.aliyuncs.com", Port: 443, APIPath: "/compatible-mode/v1", KeyEnv: "QWEN_API_KEY"},
	LLMProviderLMStudio: {Hostname: "localhost", Port: 1234, APIPath: "/v1", KeyEnv: "LM_STUDIO_API_KEY"},
	LLMProviderOllama:   {Hostname: "localhost", Port: 11434, APIPath: "/v1", KeyEnv: "OLLAMA_API_KEY"},
	LLMProviderGigaChat: {Hostname: "gigachat.devices.sberbank.ru", Port: 443, APIPath: "/api/v1", KeyEnv: "GIGACHAT_API_KEY"},
}

// RoleConfig is one role's resolved LLM endpoint.
type RoleConfig struct {
	Role     LLMRole
	Provider LLMProvider
	Model    string
	Hostname string
	Port     int
	APIPath  string
}

// BaseURL renders the OpenAI-compatible base URL for the endpoint.
// Port 443 selects https; everything else is plain http (local servers).
func (c *RoleConfig) BaseURL() string {
	if c.Port == 443 {
		return fmt.Sprintf("https://%s%s", c.Hostname, c.APIPath)
	}
	return fmt.Sprintf("http://%s:%d%s", c.Hostname, c.Port, c.APIPath)
}

// APIKey reads the provider's key variable from the environment. Unset
// keys come back empty; local servers usually run without one.
func (c *RoleConfig) APIKey() string {
	ep, ok := providerEndpoints[c.Provider]
	if !ok || ep.KeyEnv == "" {
		return ""
	}
	return os.Getenv(ep.KeyEnv)
}

// LLMConfig holds the per-role endpoint table.
type LLMConfig struct {
	roles map[LLMRole]*RoleConfig
}

// NewLLMConfig builds the table from explicit role configs (used by tests
// and by LLMFromEnv).
func NewLLMConfig(roles map[LLMRole]*RoleConfig) *LLMConfig {
	copied := make(map[LLMRole]*RoleConfig, len(roles))
	for k, v := range roles {
		copied[k] = v
	}
	return &LLMConfig{roles: copied}
}

// ForRole resolves the endpoint for a role, falling back to DEFAULT when the
// role has no dedicated configuration.
func (c *LLMConfig) ForRole(role LLMRole) (*RoleConfig, error) {
	if cfg, ok := c.roles[role]; ok {
		return cfg, nil
	}
	if cfg, ok := c.roles[RoleDefault]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRoleNotConfigured, role)
}

// Has reports whether the role has its own dedicated endpoint.
func (c *LLMConfig) Has(role LLMRole) bool {
	_, ok := c.roles[role]
	return ok
}

// Configured returns the roles with dedicated endpoints, in scan order.
func (c *LLMConfig) Configured() []LLMRole {
	var roles []LLMRole
	for _, role := range LLMRoles() {
		if _, ok := c.roles[role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// Len returns the number of dedicated role endpoints.
func (c *LLMConfig) Len() int {
	return len(c.roles)
}

// LLMFromEnv reads <ROLE>_LLM_{PROVIDER,MODEL,HOSTNAME,PORT,API_PATH} for
// every role. A role is configured when its PROVIDER variable is set; the
// remaining fields default to the provider's endpoint. DEFAULT is always
// present: unset, it points at a local Ollama server.
func LLMFromEnv() (*LLMConfig, error) {
	roles := make(map[LLMRole]*RoleConfig)

	for _, role := range LLMRoles() {
		prefix := string(role) + "_LLM_"

		rawProvider := os.Getenv(prefix + "PROVIDER")
		if rawProvider == "" {
			if role != RoleDefault {
				continue
			}
			rawProvider = string(DefaultLLMProvider)
		}

		provider, ok := ParseLLMProvider(rawProvider)
		if !ok {
			return nil, fmt.Errorf("%w: %sPROVIDER=%q", ErrUnknownProvider, prefix, rawProvider)
		}
		ep := providerEndpoints[provider]

		cfg := &RoleConfig{
			Role:     role,
			Provider: provider,
			Model:    os.Getenv(prefix + "MODEL"),
			Hostname: ep.Hostname,
			Port:     ep.Port,
			APIPath:  ep.APIPath,
		}
		if cfg.Model == "" && role == RoleDefault {
			cfg.Model = DefaultLLMModel
		}
		if host := os.Getenv(prefix + "HOSTNAME"); host != "" {
			cfg.Hostname = host
		}
		if raw := os.Getenv(prefix + "PORT"); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %sPORT=%q: %v", ErrInvalidValue, prefix, raw, err)
			}
			cfg.Port = port
		}
		if path := os.Getenv(prefix + "API_PATH"); path != "" {
			cfg.APIPath = path
		}

		roles[role] = cfg
	}

	return &LLMConfig{roles: roles}, nil
}

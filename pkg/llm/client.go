// Package llm dispatches chat completions to per-role OpenAI-compatible
// endpoints. Every supported provider (OpenAI, DeepSeek, Qwen, LM Studio,
// Ollama, GigaChat) speaks the same chat-completions dialect, so one client
// type covers all of them; the role decides which endpoint and model answer.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/datanaut-ai/datanaut/pkg/config"
)

const (
	// DefaultMaxTokens bounds a completion when the request sets no limit.
	DefaultMaxTokens = 2048
	// DefaultTemperature applies when the request sets none.
	DefaultTemperature = 0.2
)

// Request is one chat completion.
type Request struct {
	System string
	User   string
	// MaxTokens bounds the reply; 0 applies DefaultMaxTokens.
	MaxTokens int64
	// Temperature of the reply; 0 applies DefaultTemperature.
	Temperature float64
}

// Client is the completion interface the orchestration nodes depend on.
type Client interface {
	Complete(ctx context.Context, role config.LLMRole, req Request) (string, error)
}

// roleEndpoint pairs a ready client with the model it serves.
type roleEndpoint struct {
	client   openai.Client
	model    string
	provider config.LLMProvider
}

// Router implements Client over the per-role endpoint table. Roles without
// a dedicated endpoint resolve through DEFAULT at call time.
type Router struct {
	cfg       *config.LLMConfig
	endpoints map[config.LLMRole]roleEndpoint
	logger    *slog.Logger
}

// NewRouter builds one OpenAI-compatible client per configured role.
func NewRouter(cfg *config.LLMConfig, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}

	endpoints := make(map[config.LLMRole]roleEndpoint)
	for _, role := range cfg.Configured() {
		rc, err := cfg.ForRole(role)
		if err != nil {
			return nil, err
		}

		opts := []option.RequestOption{option.WithBaseURL(rc.BaseURL())}
		if key := rc.APIKey(); key != "" {
			opts = append(opts, option.WithAPIKey(key))
		}

		endpoints[role] = roleEndpoint{
			client:   openai.NewClient(opts...),
			model:    rc.Model,
			provider: rc.Provider,
		}
		logger.Info("LLM endpoint ready",
			"role", role,
			"provider", rc.Provider,
			"model", rc.Model,
			"base_url", rc.BaseURL())
	}

	if _, ok := endpoints[config.RoleDefault]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, config.RoleDefault)
	}

	return &Router{cfg: cfg, endpoints: endpoints, logger: logger}, nil
}

// Complete sends the request to the role's endpoint and returns the trimmed
// message text.
func (r *Router) Complete(ctx context.Context, role config.LLMRole, req Request) (string, error) {
	ep, ok := r.endpoints[role]
	if !ok {
		ep, ok = r.endpoints[config.RoleDefault]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrNoEndpoint, role)
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	start := time.Now()
	resp, err := ep.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(ep.model),
		Messages:    messages,
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed (%s/%s): %w", ep.provider, ep.model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w (%s/%s)", ErrEmptyCompletion, ep.provider, ep.model)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w (%s/%s)", ErrEmptyCompletion, ep.provider, ep.model)
	}

	r.logger.Debug("completion finished",
		"role", role,
		"provider", ep.provider,
		"model", ep.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(content))

	return content, nil
}

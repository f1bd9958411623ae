// Package llm is the Generation Adapter: it runs prompts against CloudWeGo Eino
// chat models and hands back tagged results with usage telemetry.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Provider identifies the LLM provider to use.
type Provider string

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string // Required for OpenAI, Anthropic and Gemini
	BaseURL  string // Ollama (default: http://localhost:11434) or an OpenAI-compatible endpoint
}

// RoleConfigs holds one model configuration per role. Research falls back to Main.
type RoleConfigs struct {
	Main     Config
	Research *Config
}

// For returns the configuration serving role.
func (r RoleConfigs) For(role Role) Config {
	if role == RoleResearch && r.Research != nil {
		return *r.Research
	}
	return r.Main
}

// NewChatModel creates a ChatModel instance based on the provider configuration.
func NewChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
		})

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		// The gemini extension reads its key from the environment.
		_ = os.Setenv("GOOGLE_API_KEY", cfg.APIKey)
		_ = os.Setenv("GEMINI_API_KEY", cfg.APIKey)

		return gemini.NewChatModel(ctx, &gemini.Config{
			Model: cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama, anthropic, gemini)", cfg.Provider)
	}
}

// ValidateProvider checks if the given provider string is supported.
func ValidateProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderGemini:
		return Provider(p), nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
}

// NewRoleModels builds the chat model for every configured role.
func NewRoleModels(ctx context.Context, cfgs RoleConfigs) (map[Role]RoleModel, error) {
	models := make(map[Role]RoleModel, 2)
	for _, role := range []Role{RoleMain, RoleResearch} {
		if role == RoleResearch && cfgs.Research == nil {
			continue
		}
		cfg := cfgs.For(role)
		cm, err := NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", role, err)
		}
		models[role] = RoleModel{Model: cm, Provider: cfg.Provider, Name: cfg.Model}
	}
	return models, nil
}

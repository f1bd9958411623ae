package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/spf13/viper"
)

// LoadLLMConfig loads the per-role model configuration from Viper and environment variables.
// It handles precedence: Explicit Viper Config > Environment Variables > Defaults.
// The research role is only configured when llm.research.provider or llm.research.model is set;
// otherwise research calls fall back to the main model.
func LoadLLMConfig() (llm.RoleConfigs, error) {
	mainCfg, err := loadRole("llm", nil)
	if err != nil {
		return llm.RoleConfigs{}, err
	}

	cfgs := llm.RoleConfigs{Main: mainCfg}
	if viper.GetString("llm.research.provider") != "" || viper.GetString("llm.research.model") != "" {
		research, err := loadRole("llm.research", &mainCfg)
		if err != nil {
			return llm.RoleConfigs{}, fmt.Errorf("research role: %w", err)
		}
		cfgs.Research = &research
	}
	return cfgs, nil
}

// loadRole reads <prefix>.provider/model/baseURL. Unset research values inherit
// from the main role.
func loadRole(prefix string, fallback *llm.Config) (llm.Config, error) {
	// 1. Provider
	provider := viper.GetString(prefix + ".provider")
	if provider == "" && fallback != nil {
		provider = string(fallback.Provider)
	}
	if provider == "" {
		provider = llm.DefaultProvider
	}

	llmProvider, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	// 2. Model
	model := viper.GetString(prefix + ".model")
	if model == "" {
		model = llm.DefaultModelForProvider(string(llmProvider))
	}

	// 3. API Key. Missing keys surface when the chat model is built;
	// Ollama needs none.
	apiKey := ResolveAPIKey(llmProvider)

	// 4. Base URL (Ollama or an OpenAI-compatible endpoint)
	baseURL := viper.GetString(prefix + ".baseURL")
	if baseURL == "" && fallback != nil && fallback.Provider == llmProvider {
		baseURL = fallback.BaseURL
	}
	if baseURL == "" && llmProvider == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	return llm.Config{
		Provider: llmProvider,
		Model:    model,
		APIKey:   apiKey,
		BaseURL:  baseURL,
	}, nil
}

// ResolveAPIKey returns the best API key for the given provider using
// per-provider config keys, then provider-specific env vars.
func ResolveAPIKey(provider llm.Provider) string {
	keyFromViper := func(path string) string {
		if viper.IsSet(path) {
			return strings.TrimSpace(viper.GetString(path))
		}
		return ""
	}

	// 1) Per-provider config key (llm.apiKeys.<provider>)
	if key := keyFromViper(fmt.Sprintf("llm.apiKeys.%s", provider)); key != "" {
		return key
	}

	// 2) Provider-specific env vars
	return providerEnvKey(provider)
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	default:
		return ""
	}
}

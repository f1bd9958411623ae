package llm

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderOpenAI

	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// Role selects which configured model serves a call.
type Role string

const (
	RoleMain     Role = "main"
	RoleResearch Role = "research"
)

// RoleFor maps the research flag of a pipeline operation to a role.
func RoleFor(research bool) Role {
	if research {
		return RoleResearch
	}
	return RoleMain
}

// defaultModels is the model used per provider when none is configured.
var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-5-mini",
	ProviderAnthropic: "claude-sonnet-4.5",
	ProviderGemini:    "gemini-2.5-flash",
	ProviderOllama:    "llama3.2",
}

// DefaultModelForProvider returns the default model ID for a given provider.
func DefaultModelForProvider(provider string) string {
	return defaultModels[provider]
}

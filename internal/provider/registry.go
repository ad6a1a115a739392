package provider

import (
	"fmt"
	"sort"
	"time"
)

// openAICompatibleURLs maps provider names that speak the OpenAI chat
// completions dialect to their endpoints.
var openAICompatibleURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"groq":     "https://api.groq.com/openai/v1",
	"xai":      "https://api.x.ai/v1",
	"deepseek": "https://api.deepseek.com",
	"qwen":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"kimi":     "https://api.moonshot.cn/v1",
	"minimax":  "https://api.minimax.chat/v1",
}

// Catalog lists the known models per provider, used by the model picker.
var Catalog = map[string][]string{
	"gemini":    {"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"},
	"openai":    {"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "o1", "o1-mini"},
	"anthropic": {"claude-sonnet-4-20250514", "claude-3-5-haiku-latest", "claude-3-opus-latest"},
	"groq":      {"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768"},
	"xai":       {"grok-2", "grok-2-vision", "grok-beta"},
	"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
	"qwen":      {"qwen-turbo", "qwen-plus", "qwen-max"},
	"kimi":      {"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
	"minimax":   {"abab6.5-chat", "abab5.5-chat"},
}

// Names returns the catalog's provider names in stable order.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns the known model list for a provider.
func Models(providerName string) []string {
	return Catalog[providerName]
}

// KeyLookup resolves an API key for a provider name.
type KeyLookup func(providerName string) string

// Registry builds clients for provider/model pairs.
type Registry struct {
	keys    KeyLookup
	timeout time.Duration
}

// NewRegistry creates a registry that pulls credentials through keys.
func NewRegistry(keys KeyLookup) *Registry {
	return &Registry{keys: keys, timeout: 10 * time.Minute}
}

// Resolve returns a client for the given provider and model. The lookup is
// pure: no network traffic happens until the client is used.
func (r *Registry) Resolve(providerName, modelName string) (Client, error) {
	if modelName == "" {
		if models := Catalog[providerName]; len(models) > 0 {
			modelName = models[0]
		}
	}

	switch providerName {
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey: r.keys(providerName),
			Model:  modelName,
		})
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  r.keys(providerName),
			Model:   modelName,
			Timeout: r.timeout,
		}), nil
	default:
		baseURL, ok := openAICompatibleURLs[providerName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
		}
		return NewOpenAIClient(OpenAIConfig{
			Provider: providerName,
			APIKey:   r.keys(providerName),
			BaseURL:  baseURL,
			Model:    modelName,
			Timeout:  r.timeout,
		}), nil
	}
}

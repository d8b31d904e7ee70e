package structuring

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	scanerrors "menu-scan/pkg/errors"
)

// ModelConfig selects and authenticates a chat model backend.
type ModelConfig struct {
	Provider        string
	Model           string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	MistralAPIKey   string
	OllamaHost      string
}

// NewModel creates the langchaingo client for the configured provider.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		return createOpenAIClient(cfg)
	case "anthropic":
		return createAnthropicClient(cfg)
	case "ollama":
		return createOllamaClient(cfg)
	case "mistral":
		return createMistralClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q: %w", cfg.Provider, scanerrors.ErrProviderUnavailable)
	}
}

func createOpenAIClient(cfg ModelConfig) (llms.Model, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not set: %w", scanerrors.ErrProviderUnavailable)
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithHTTPClient(newInstrumentedHTTPClient()),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return openai.New(opts...)
}

func createAnthropicClient(cfg ModelConfig) (llms.Model, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is not set: %w", scanerrors.ErrProviderUnavailable)
	}
	return anthropic.New(
		anthropic.WithModel(cfg.Model),
		anthropic.WithToken(cfg.AnthropicAPIKey),
	)
}

func createOllamaClient(cfg ModelConfig) (llms.Model, error) {
	host := cfg.OllamaHost
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(host),
	)
}

func createMistralClient(cfg ModelConfig) (llms.Model, error) {
	if cfg.MistralAPIKey == "" {
		return nil, fmt.Errorf("Mistral API key is not set: %w", scanerrors.ErrProviderUnavailable)
	}
	return mistral.New(
		mistral.WithModel(cfg.Model),
		mistral.WithAPIKey(cfg.MistralAPIKey),
	)
}

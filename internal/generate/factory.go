package generate

import (
	"fmt"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

// ProviderType represents an answer generation provider.
type ProviderType string

const (
	// ProviderOpenAI uses OpenAI chat completions (default).
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama chat model.
	ProviderOllama ProviderType = "ollama"

	// ProviderExtractive quotes context sentences without a model (offline mode).
	ProviderExtractive ProviderType = "extractive"
)

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderOpenAI), string(ProviderOllama), string(ProviderExtractive)}
}

// Options selects and configures a generator.
type Options struct {
	Provider    ProviderType
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64

	// Client carries rate limit, retry, circuit breaker and timeout settings.
	Client provider.Config
}

// NewGenerator creates the generator described by opts.
func NewGenerator(opts Options) (Generator, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		if opts.APIKey == "" {
			return nil, lenserrors.New(lenserrors.ErrCodeMissingAPIKey,
				"OpenAI answer generation needs an API key", nil).
				WithSuggestion("Set OPENAI_API_KEY, or run with --offline")
		}
		cfg := opts.Client
		cfg.Name = "openai-chat"
		cfg.BaseURL = opts.BaseURL
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenAIBaseURL
		}
		cfg.APIKey = opts.APIKey
		return NewOpenAIGenerator(provider.NewClient(cfg), opts.Model, opts.Temperature), nil

	case ProviderOllama:
		cfg := opts.Client
		cfg.Name = "ollama-chat"
		cfg.BaseURL = opts.BaseURL
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaHost
		}
		return NewOllamaGenerator(provider.NewClient(cfg), opts.Model, opts.Temperature), nil

	case ProviderExtractive:
		return NewExtractiveGenerator(), nil

	default:
		return nil, lenserrors.ConfigurationError(
			fmt.Sprintf("unknown generation provider %q (valid: %s)",
				opts.Provider, strings.Join(ValidProviders(), ", ")), nil)
	}
}

// ParseProvider converts a string to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	p := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidProviders() {
		if string(p) == v {
			return p, nil
		}
	}
	return "", lenserrors.ConfigurationError(
		fmt.Sprintf("unknown generation provider %q (valid: %s)", s, strings.Join(ValidProviders(), ", ")), nil)
}

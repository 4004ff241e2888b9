package embed

import (
	"context"
	"fmt"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOpenAI uses the OpenAI embeddings API (default).
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline mode).
	ProviderStatic ProviderType = "static"
)

// String returns the string representation of ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// Options selects and configures an embedder.
type Options struct {
	Provider ProviderType
	Model    string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey is required for OpenAI.
	APIKey string

	// CacheSize is the LRU size. Negative disables caching; zero uses the default.
	CacheSize int

	// StaticDimensions sizes the static embedder.
	StaticDimensions int

	// Client carries rate limit, retry, circuit breaker and timeout settings.
	// Name, BaseURL and APIKey are filled in from the fields above.
	Client provider.Config
}

// NewEmbedder creates the embedder described by opts. There is no silent
// fallback: a misconfigured provider is an error, never a static embedder.
func NewEmbedder(opts Options) (Embedder, error) {
	var embedder Embedder

	switch opts.Provider {
	case ProviderOpenAI, "":
		if opts.APIKey == "" {
			return nil, lenserrors.New(lenserrors.ErrCodeMissingAPIKey,
				"OpenAI embeddings need an API key", nil).
				WithSuggestion("Set OPENAI_API_KEY, or run with --offline")
		}
		cfg := opts.Client
		cfg.Name = "openai-embeddings"
		cfg.BaseURL = firstNonEmpty(opts.BaseURL, DefaultOpenAIBaseURL)
		cfg.APIKey = opts.APIKey
		embedder = NewOpenAIEmbedder(provider.NewClient(cfg), opts.Model)

	case ProviderOllama:
		cfg := opts.Client
		cfg.Name = "ollama-embeddings"
		cfg.BaseURL = firstNonEmpty(opts.BaseURL, DefaultOllamaHost)
		embedder = NewOllamaEmbedder(provider.NewClient(cfg), opts.Model)

	case ProviderStatic:
		embedder = NewStaticEmbedder(opts.StaticDimensions)

	default:
		return nil, lenserrors.ConfigurationError(
			fmt.Sprintf("unknown embedding provider %q (valid: %s)",
				opts.Provider, strings.Join(ValidProviders(), ", ")), nil)
	}

	if opts.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}
	return embedder, nil
}

// ParseProvider converts a string to ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	p := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	if !IsValidProvider(string(p)) {
		return "", lenserrors.ConfigurationError(
			fmt.Sprintf("unknown embedding provider %q (valid: %s)", s, strings.Join(ValidProviders(), ", ")), nil)
	}
	return p, nil
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{
		string(ProviderOpenAI),
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder.
type EmbedderInfo struct {
	Provider   ProviderType `json:"provider"`
	Model      string       `json:"model"`
	Dimensions int          `json:"dimensions"`
	Cached     bool         `json:"cached"`
}

// GetInfo describes an embedder without making a request.
func GetInfo(embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
		info.Cached = true
	}

	switch inner.(type) {
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}
	return info
}

// CheckAvailable returns a ProviderError when the embedder cannot serve requests.
func CheckAvailable(ctx context.Context, embedder Embedder) error {
	if embedder.Available(ctx) {
		return nil
	}
	return lenserrors.ProviderError(lenserrors.ErrCodeProviderUnavailable,
		fmt.Sprintf("embedding model %s is not available", embedder.ModelName()), nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

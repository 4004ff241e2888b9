package generate

import (
	"context"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

const (
	// DefaultOllamaHost is the local Ollama endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a small local chat model.
	DefaultOllamaModel = "llama3.2"
)

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// OllamaGenerator answers with a local Ollama chat model.
type OllamaGenerator struct {
	client      *provider.Client
	model       string
	temperature float64
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generator for Ollama's /api/chat.
func NewOllamaGenerator(client *provider.Client, model string, temperature float64) *OllamaGenerator {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaGenerator{client: client, model: model, temperature: temperature}
}

// Generate requests a single non-streamed reply.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaChatRequest{
		Model:    g.model,
		Messages: buildMessages(req),
	}
	body.Options.Temperature = g.temperature

	var resp ollamaChatResponse
	if err := g.client.PostJSON(ctx, "/api/chat", body, &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			"ollama returned an empty answer", nil)
	}
	return text, nil
}

// ModelName returns the model identifier.
func (g *OllamaGenerator) ModelName() string { return g.model }

// Close releases idle connections.
func (g *OllamaGenerator) Close() error {
	g.client.Close()
	return nil
}

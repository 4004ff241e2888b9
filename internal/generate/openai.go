package generate

import (
	"context"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is a fast general-purpose chat model.
	DefaultOpenAIModel = "gpt-3.5-turbo"
)

// chatCompletionRequest is the OpenAI /chat/completions request format.
// Temperature has no omitempty: 0 must be sent, not defaulted to 1 by the API.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIGenerator answers with the OpenAI chat completions API.
type OpenAIGenerator struct {
	client      *provider.Client
	model       string
	temperature float64
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator that sends requests through client.
func NewOpenAIGenerator(client *provider.Client, model string, temperature float64) *OpenAIGenerator {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{client: client, model: model, temperature: temperature}
}

// Generate sends history and the filled prompt as one conversation.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var resp chatCompletionResponse
	if err := g.client.PostJSON(ctx, "/chat/completions", chatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(req),
		Temperature: g.temperature,
	}, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			"chat completion returned no choices", nil)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", lenserrors.ProviderError(lenserrors.ErrCodeProviderRejected,
			"the answer was withheld by the provider's content filter", nil)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			"chat completion returned an empty answer", nil)
	}
	return text, nil
}

// ModelName returns the model identifier.
func (g *OpenAIGenerator) ModelName() string { return g.model }

// Close releases idle connections.
func (g *OpenAIGenerator) Close() error {
	g.client.Close()
	return nil
}

package embed

import (
	"context"
	"fmt"
	"sync"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the embedding model used for lease documents.
	DefaultOpenAIModel = "text-embedding-ada-002"
)

// openAIModelDimensions lists the output size of known embedding models.
// Unknown models learn their size from the first response.
var openAIModelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *provider.Client
	model  string

	mu   sync.RWMutex
	dims int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder that sends requests through client.
func NewOpenAIEmbedder(client *provider.Client, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEmbedder{
		client: client,
		model:  model,
		dims:   openAIModelDimensions[model],
	}
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, splitting into requests of at most MaxBatchSize inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openAIEmbeddingResponse
	err := e.client.PostJSON(ctx, "/embeddings", openAIEmbeddingRequest{
		Model: e.model,
		Input: texts,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			fmt.Sprintf("requested %d embeddings, received %d", len(texts), len(resp.Data)), nil)
	}

	// The API does not promise response order; index is authoritative.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vecs[d.Index] != nil {
			return nil, lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
				fmt.Sprintf("unexpected embedding index %d", d.Index), nil)
		}
		vec := toFloat32(d.Embedding)
		if err := ValidateVector(vec, e.learnDimensions(len(vec))); err != nil {
			return nil, err
		}
		vecs[d.Index] = vec
	}
	return vecs, nil
}

// learnDimensions records the first observed size and returns the expected size.
func (e *OpenAIEmbedder) learnDimensions(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
	}
	return e.dims
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available checks that the model is visible to the configured key.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	return e.client.GetJSON(ctx, "/models/"+e.model, nil) == nil
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.Close()
	return nil
}

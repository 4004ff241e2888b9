package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

const (
	// DefaultOllamaHost is the local Ollama endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the embedding model pulled by `ollama pull nomic-embed-text`.
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaEmbedRequest is the request body for /api/embed.
type OllamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// OllamaEmbedResponse is the response body for /api/embed.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaModelList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client *provider.Client
	model  string

	mu   sync.RWMutex
	dims int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. Dimensions are learned from the first response.
func NewOllamaEmbedder(client *provider.Client, model string) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaEmbedder{client: client, model: model}
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts using Ollama's batch API.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	var resp OllamaEmbedResponse
	if err := e.client.PostJSON(ctx, "/api/embed", OllamaEmbedRequest{
		Model: e.model,
		Input: texts,
	}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			fmt.Sprintf("requested %d embeddings, received %d", len(texts), len(resp.Embeddings)), nil)
	}

	results := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vec := toFloat32(emb)
		if err := ValidateVector(vec, e.learnDimensions(len(vec))); err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (e *OllamaEmbedder) learnDimensions(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
	}
	return e.dims
}

// Dimensions returns the embedding dimension, 0 before the first response.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Available reports whether Ollama is running and has the model pulled.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	var list ollamaModelList
	if err := e.client.GetJSON(ctx, "/api/tags", &list); err != nil {
		return false
	}
	names := make([]string, len(list.Models))
	for i, m := range list.Models {
		names[i] = m.Name
	}
	return hasModel(names, e.model)
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.Close()
	return nil
}

// hasModel matches model against installed names, ignoring case and the ":latest"-style tag
// when the requested name has none.
func hasModel(installed []string, model string) bool {
	want := strings.ToLower(model)
	wantBase, _, tagged := strings.Cut(want, ":")
	for _, name := range installed {
		have := strings.ToLower(name)
		if have == want {
			return true
		}
		if haveBase, _, _ := strings.Cut(have, ":"); !tagged && haveBase == wantBase {
			return true
		}
	}
	return false
}

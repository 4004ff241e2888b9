package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/provider"
)

func testClient(url string) *provider.Client {
	return provider.NewClient(provider.Config{Name: "test", BaseURL: url, APIKey: "sk-test"})
}

// openAIServer answers /embeddings with vector [len(text), 1, 0...] of size dims,
// returning data in reverse order to exercise index-based reordering.
func openAIServer(t *testing.T, dims int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dims)
			vec[0] = float64(len(req.Input[i]))
			vec[1] = 1
			data = append(data, item{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
}

func TestOpenAIEmbedder_EmbedBatch_ReordersByIndex(t *testing.T) {
	// Given: a server that returns embeddings out of order
	srv := openAIServer(t, 1536)
	defer srv.Close()
	e := NewOpenAIEmbedder(testClient(srv.URL), "")

	// When
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})

	// Then: vectors line up with inputs
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(3), vecs[1][0])
	assert.Equal(t, float32(2), vecs[2][0])
	assert.Equal(t, 1536, e.Dimensions())
}

func TestOpenAIEmbedder_UnknownModelLearnsDimensions(t *testing.T) {
	srv := openAIServer(t, 8)
	defer srv.Close()
	e := NewOpenAIEmbedder(testClient(srv.URL), "custom-embedding")
	assert.Equal(t, 0, e.Dimensions())

	_, err := e.Embed(context.Background(), "rent")

	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())
}

func TestOpenAIEmbedder_WrongDimensions_IsMismatch(t *testing.T) {
	// ada-002 must return 1536 values
	srv := openAIServer(t, 8)
	defer srv.Close()
	e := NewOpenAIEmbedder(testClient(srv.URL), DefaultOpenAIModel)

	_, err := e.Embed(context.Background(), "rent")

	assert.Equal(t, lenserrors.ErrCodeDimensionMismatch, lenserrors.GetCode(err))
}

func TestOpenAIEmbedder_BadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing embeddings", body: `{"data":[]}`},
		{name: "zero vector", body: `{"data":[{"index":0,"embedding":[0,0]}]}`},
		{name: "out of range index", body: `{"data":[{"index":4,"embedding":[1,0]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAIEmbedder(testClient(srv.URL), "custom").Embed(context.Background(), "rent")

			assert.Equal(t, lenserrors.ErrCodeProviderBadResponse, lenserrors.GetCode(err))
		})
	}
}

func TestOpenAIEmbedder_EmptyText_NoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder(testClient(srv.URL), "").EmbedBatch(context.Background(), []string{"rent", ""})

	assert.Equal(t, lenserrors.ErrCodeInvalidInput, lenserrors.GetCode(err))
	assert.False(t, called)
}

func TestOpenAIEmbedder_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/"+DefaultOpenAIModel {
			_, _ = w.Write([]byte(`{"id":"text-embedding-ada-002"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.True(t, NewOpenAIEmbedder(testClient(srv.URL), "").Available(context.Background()))
	assert.False(t, NewOpenAIEmbedder(testClient(srv.URL), "missing").Available(context.Background()))
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req OllamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOllamaModel, req.Model)

		resp := OllamaEmbedResponse{Model: req.Model}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i + 1), 0.5, 0.25})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(testClient(srv.URL), "")
	vecs, err := e.EmbedBatch(context.Background(), []string{"rent", "deposit"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{2, 0.5, 0.25}, vecs[1])
	assert.Equal(t, 3, e.Dimensions())
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(testClient(srv.URL), "").EmbedBatch(context.Background(), []string{"a", "b"})

	assert.Equal(t, lenserrors.ErrCodeProviderBadResponse, lenserrors.GetCode(err))
}

func TestOllamaEmbedder_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	assert.True(t, NewOllamaEmbedder(testClient(srv.URL), "nomic-embed-text").Available(context.Background()))
	assert.False(t, NewOllamaEmbedder(testClient(srv.URL), "mxbai-embed-large").Available(context.Background()))
}

func TestHasModel(t *testing.T) {
	installed := []string{"Nomic-Embed-Text:latest", "qwen3-embedding:8b"}

	assert.True(t, hasModel(installed, "nomic-embed-text"))
	assert.True(t, hasModel(installed, "nomic-embed-text:latest"))
	assert.True(t, hasModel(installed, "qwen3-embedding:8b"))
	assert.False(t, hasModel(installed, "qwen3-embedding:4b"))
	assert.False(t, hasModel(installed, "all-minilm"))
}

package embed

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// countingEmbedder returns a distinct deterministic vector per text and counts calls.
type countingEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	dims       int
	modelName  string

	mu       sync.Mutex
	batches  [][]string
	failWith error
}

func newCountingEmbedder(dims int) *countingEmbedder {
	return &countingEmbedder{dims: dims, modelName: "counting-model"}
}

func (m *countingEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, m.dims)
	vec[len(text)%m.dims] = 1
	vec[(len(text)+1)%m.dims] += 0.5
	return vec
}

func (m *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.vectorFor(text), nil
}

func (m *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vectorFor(text)
	}
	return result, nil
}

func (m *countingEmbedder) Dimensions() int { return m.dims }
func (m *countingEmbedder) ModelName() string { return m.modelName }
func (m *countingEmbedder) Available(ctx context.Context) bool { return true }
func (m *countingEmbedder) Close() error { return nil }

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

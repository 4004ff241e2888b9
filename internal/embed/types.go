// Package embed turns chunk and question text into vectors.
//
// Every Embedder returns vectors of one fixed dimensionality. A provider that
// returns an empty, zero or non-finite vector is reported as a bad response;
// vectors are never silently padded or zeroed.
package embed

import (
	"context"
	"fmt"
	"math"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 64

	// MaxBatchSize caps a single request (OpenAI accepts at most 2048 inputs).
	MaxBatchSize = 2048

	// DefaultConcurrency bounds in-flight embedding requests during a build.
	DefaultConcurrency = 4

	// StaticDimensions is the embedding dimension for the static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, or 0 if not yet known.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// ValidateVector rejects vectors that cannot take part in cosine similarity.
// dims <= 0 skips the length check.
func ValidateVector(vec []float32, dims int) error {
	if len(vec) == 0 {
		return lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			"embedding provider returned an empty vector", nil)
	}
	if dims > 0 && len(vec) != dims {
		return lenserrors.New(lenserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(vec), dims), nil)
	}

	var sumSquares float64
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
				"embedding provider returned a non-finite value", nil)
		}
		sumSquares += f * f
	}
	if sumSquares == 0 {
		return lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			"embedding provider returned a zero vector", nil)
	}
	return nil
}

// checkTexts rejects empty input before any request is made.
func checkTexts(texts []string) error {
	for i, t := range texts {
		if isBlank(t) {
			return lenserrors.ValidationError(fmt.Sprintf("text %d is empty", i), nil)
		}
	}
	return nil
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// toFloat32 converts a JSON-decoded vector.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

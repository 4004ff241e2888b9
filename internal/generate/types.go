// Package generate produces answers from a question and retrieved lease context.
package generate

import (
	"context"
)

const (
	// DefaultMaxSentences bounds answer length in the prompt.
	DefaultMaxSentences = 5

	// DefaultTemperature keeps answers reproducible.
	DefaultTemperature = 0.0
)

// ContextBlock is one retrieved chunk shown to the model.
type ContextBlock struct {
	Page int
	Text string
}

// Turn is a previous question and its answer.
type Turn struct {
	Question string
	Answer   string
}

// Request is everything a Generator needs for one answer.
type Request struct {
	Question string
	Context  []ContextBlock

	// History is oldest first. It gives the model dialogue context only.
	History []Turn

	// MaxSentences is rendered into the prompt; <= 0 uses DefaultMaxSentences.
	MaxSentences int
}

// Generator turns a Request into answer text.
type Generator interface {
	// Generate returns the answer text.
	Generate(ctx context.Context, req Request) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

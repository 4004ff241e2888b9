package index

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/Aman-CERP/leaselens/internal/chunk"
)

// topicEmbedder maps text onto fixed axes by keyword, so cosine similarity is predictable.
type topicEmbedder struct {
	calls  atomic.Int64
	texts  atomic.Int64
	fail   error
	failOn string
}

var topics = []string{"rent", "deposit", "pet", "repair"}

func (e *topicEmbedder) vector(text string) []float32 {
	vec := make([]float32, len(topics)+1)
	lower := strings.ToLower(text)
	for i, topic := range topics {
		if strings.Contains(lower, topic) {
			vec[i] = 1
		}
	}
	vec[len(topics)] = 0.1
	return vec
}

func (e *topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	e.texts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.fail != nil && (e.failOn == "" || strings.Contains(t, e.failOn)) {
			return nil, e.fail
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *topicEmbedder) Dimensions() int { return len(topics) + 1 }
func (e *topicEmbedder) ModelName() string { return "topic" }
func (e *topicEmbedder) Available(context.Context) bool { return true }
func (e *topicEmbedder) Close() error { return nil }

func leaseChunks() []chunk.Chunk {
	texts := []struct {
		page int
		text string
	}{
		{1, "The monthly rent is $1,200 payable on the first."},
		{1, "A security deposit of $1,500 is due at signing."},
		{2, "No pet may be kept without written consent."},
		{2, "Landlord handles major repair work within 30 days."},
	}
	chunks := make([]chunk.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = chunk.Chunk{ID: i, Text: t.text, PageNumber: t.page, CharStart: 0, CharEnd: len([]rune(t.text))}
	}
	return chunks
}

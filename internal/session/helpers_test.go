package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	"github.com/Aman-CERP/leaselens/internal/generate"
)

// topicEmbedder maps text onto one axis per keyword so similarity is predictable.
type topicEmbedder struct {
	mu   sync.Mutex
	fail error

	// stallQueries makes Embed wait for its context.
	stallQueries atomic.Bool
}

var topics = []string{"rent", "deposit", "pet", "repair"}

func (e *topicEmbedder) setFail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

func (e *topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.stallQueries.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *topicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	fail := e.fail
	e.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, len(topics)+1)
		lower := strings.ToLower(t)
		for j, topic := range topics {
			if strings.Contains(lower, topic) {
				vec[j] = 1
			}
		}
		vec[len(topics)] = 0.1
		out[i] = vec
	}
	return out, nil
}

func (e *topicEmbedder) Dimensions() int                { return len(topics) + 1 }
func (e *topicEmbedder) ModelName() string              { return "topic" }
func (e *topicEmbedder) Available(context.Context) bool { return true }
func (e *topicEmbedder) Close() error                   { return nil }

// recordingGenerator remembers every request and tracks overlapping calls.
type recordingGenerator struct {
	mu       sync.Mutex
	requests []generate.Request

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	answer string
	err    error
	block  bool // wait for ctx cancellation
}

func (g *recordingGenerator) Generate(ctx context.Context, req generate.Request) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		cur := g.maxInFlight.Load()
		if n <= cur || g.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	if g.answer != "" {
		return g.answer, nil
	}
	return "answer to: " + req.Question, nil
}

func (g *recordingGenerator) calls() []generate.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generate.Request(nil), g.requests...)
}

func (g *recordingGenerator) ModelName() string { return "recording" }
func (g *recordingGenerator) Close() error      { return nil }

func leasePages() []chunk.Page {
	return []chunk.Page{
		{Number: 1, Text: "The monthly rent is $1,200, payable on the first day of each month."},
		{Number: 2, Text: "One pet is allowed with a pet deposit of $300. Tenant pays for minor repair work."},
	}
}

func newTestSession(t *testing.T, gen *recordingGenerator, mutate func(*Config)) (*Session, *topicEmbedder) {
	t.Helper()
	emb := &topicEmbedder{}
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	sess, err := New(cfg, Deps{Embedder: emb, Generator: gen})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess, emb
}

func loadedSession(t *testing.T, gen *recordingGenerator, mutate func(*Config)) *Session {
	t.Helper()
	sess, _ := newTestSession(t, gen, mutate)
	_, err := sess.ProcessDocument(context.Background(), "lease.pdf", leasePages())
	require.NoError(t, err)
	return sess
}

package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/store"
)

// Index is the read side of a built document index.
type Index interface {
	SearchLexical(ctx context.Context, question string, k int) ([]*store.BM25Result, error)
	SearchSemantic(ctx context.Context, question string, k int) ([]*store.VectorResult, error)
}

// Result is the outcome of one retrieval.
type Result struct {
	Question string
	Lexical  []*store.BM25Result
	Semantic []*store.VectorResult
	Fused    []*FusedResult
	Duration time.Duration
}

// Retriever runs both searches for a question and fuses them.
type Retriever struct {
	fusion  *WeightedRRF
	weights Weights
	k       int
	topN    int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithWeights sets the fusion weights.
func WithWeights(w Weights) Option {
	return func(r *Retriever) { r.weights = w }
}

// WithK sets how many results each source returns.
func WithK(k int) Option {
	return func(r *Retriever) { r.k = k }
}

// WithTopN sets how many fused results are kept.
func WithTopN(n int) Option {
	return func(r *Retriever) { r.topN = n }
}

// WithRRFConstant sets the reciprocal rank smoothing constant.
func WithRRFConstant(k int) Option {
	return func(r *Retriever) { r.fusion = NewWeightedRRF(k) }
}

// NewRetriever creates a Retriever. Invalid settings are rejected here rather
// than on the first question.
func NewRetriever(opts ...Option) (*Retriever, error) {
	r := &Retriever{
		fusion:  NewWeightedRRF(DefaultRRFConstant),
		weights: DefaultWeights(),
		k:       DefaultK,
		topN:    DefaultTopN,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.k <= 0 {
		return nil, lenserrors.ConfigurationError(fmt.Sprintf("k must be positive, got %d", r.k), nil)
	}
	if r.topN <= 0 {
		return nil, lenserrors.ConfigurationError(fmt.Sprintf("top_n must be positive, got %d", r.topN), nil)
	}
	if err := r.weights.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Weights returns the fusion weights in use.
func (r *Retriever) Weights() Weights { return r.weights }

// K returns the per-source result count.
func (r *Retriever) K() int { return r.k }

// TopN returns the fused result count.
func (r *Retriever) TopN() int { return r.topN }

// Retrieve searches idx for question. Both searches run concurrently; if
// either fails the whole retrieval fails, so an answer is never built from
// one path while the caller believes it is hybrid.
func (r *Retriever) Retrieve(ctx context.Context, idx Index, question string) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, lenserrors.New(lenserrors.ErrCodeQueryEmpty, "question is empty", nil)
	}

	start := time.Now()
	lexical, semantic, err := r.parallelSearch(ctx, idx, question)
	if err != nil {
		return nil, err
	}

	fused := r.fusion.Fuse(lexical, semantic, r.weights, r.topN)

	result := &Result{
		Question: question,
		Lexical:  lexical,
		Semantic: semantic,
		Fused:    fused,
		Duration: time.Since(start),
	}

	slog.Debug("retrieval_complete",
		slog.Int("lexical", len(lexical)),
		slog.Int("semantic", len(semantic)),
		slog.Int("fused", len(fused)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (r *Retriever) parallelSearch(ctx context.Context, idx Index, question string) (
	lexical []*store.BM25Result,
	semantic []*store.VectorResult,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, searchErr := idx.SearchLexical(gctx, question, r.k)
		if searchErr != nil {
			return fmt.Errorf("lexical search: %w", searchErr)
		}
		lexical = res
		return nil
	})

	g.Go(func() error {
		res, searchErr := idx.SearchSemantic(gctx, question, r.k)
		if searchErr != nil {
			return fmt.Errorf("semantic search: %w", searchErr)
		}
		semantic = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lexical, semantic, nil
}

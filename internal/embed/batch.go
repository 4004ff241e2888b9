package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// BatchOptions controls EmbedAll.
type BatchOptions struct {
	// BatchSize is the number of texts per EmbedBatch call.
	BatchSize int

	// Concurrency bounds in-flight batches.
	Concurrency int

	// Progress, if set, is called after each batch with texts done so far.
	Progress func(done, total int)
}

// EmbedAll embeds every text exactly once, in input order, using bounded
// concurrent batches. The first failing batch cancels the rest and its error
// is returned; no partial result is ever returned. All vectors are checked
// to share one dimensionality.
func EmbedAll(ctx context.Context, e Embedder, texts []string, opts BatchOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchSize = min(batchSize, MaxBatchSize)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([][]float32, len(texts))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
					fmt.Sprintf("requested %d embeddings, received %d", end-start, len(vecs)), nil)
			}
			// Each batch owns a disjoint range of results.
			copy(results[start:end], vecs)

			n := int(done.Add(int64(end - start)))
			if opts.Progress != nil {
				opts.Progress(n, len(texts))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dims := len(results[0])
	for i, vec := range results {
		if err := ValidateVector(vec, dims); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
	}

	slog.Debug("embed_all_complete",
		slog.String("model", e.ModelName()),
		slog.Int("texts", len(texts)),
		slog.Int("dimensions", dims),
		slog.Int("batch_size", batchSize))
	return results, nil
}

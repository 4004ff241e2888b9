package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// DefaultEmbeddingCacheSize is the number of question vectors kept per process.
// 1000 ada-002 vectors take about 6MB.
const DefaultEmbeddingCacheSize = 1000

// questionKey scopes a cached vector to the model that produced it, so a
// config reload with another model never serves stale geometry.
type questionKey struct {
	model string
	text  string
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// CachedEmbedder remembers question vectors. Users re-ask the same sample
// questions across leases and sessions; each repeat skips a provider call.
// Returned vectors are shared with the cache and must not be modified.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[questionKey, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU of size entries (default when <= 0).
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[questionKey, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) key(text string) questionKey {
	return questionKey{model: c.inner.ModelName(), text: text}
}

func (c *CachedEmbedder) lookup(text string) ([]float32, bool) {
	vec, ok := c.cache.Get(c.key(text))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return vec, ok
}

// Embed serves text from the cache or the inner embedder. Failures are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(c.key(text), vec)
	return vec, nil
}

// EmbedBatch sends only the misses to the inner embedder, in one call, and
// merges them back by position.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := c.lookup(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vecs, err := c.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(pending) {
		return nil, lenserrors.ProviderError(lenserrors.ErrCodeProviderBadResponse,
			fmt.Sprintf("requested %d embeddings, received %d", len(pending), len(vecs)), nil)
	}
	for j, i := range missing {
		out[i] = vecs[j]
		c.cache.Add(c.key(texts[i]), vecs[j])
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Stats returns entry, hit and miss counts.
func (c *CachedEmbedder) Stats() CacheStats {
	return CacheStats{Entries: c.cache.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close logs the cache's hit rate and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	stats := c.Stats()
	slog.Debug("embedding_cache_closed",
		slog.String("model", c.inner.ModelName()),
		slog.Int("entries", stats.Entries),
		slog.Int64("hits", stats.Hits),
		slog.Int64("misses", stats.Misses))
	return c.inner.Close()
}

package embed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_CacheHit_ReturnsWithoutCallingInner(t *testing.T) {
	// Given: a cached embedder
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()

	// When: the same question is embedded twice
	first, err1 := cached.Embed(ctx, "How much is the rent?")
	second, err2 := cached.Embed(ctx, "How much is the rent?")

	// Then: the inner embedder is called once and results match
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, first, second)
}

func TestCachedEmbedder_CacheMiss_CallsInnerForNewText(t *testing.T) {
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	for _, q := range []string{"Can I have pets?", "Is subletting allowed?", "What utilities are included?"} {
		_, err := cached.Embed(ctx, q)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), inner.embedCalls.Load())
	assert.Equal(t, 3, cached.Len())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := newCountingEmbedder(12)
	inner.modelName = "text-embedding-3-small"
	cached := NewCachedEmbedder(inner, 100)

	assert.Equal(t, 12, cached.Dimensions())
	assert.Equal(t, "text-embedding-3-small", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, inner, cached.Inner())
	assert.NoError(t, cached.Close())
}

func TestCachedEmbedder_EmbedBatch_OnlySendsUncachedTexts(t *testing.T) {
	// Given: one text already cached
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()
	_, err := cached.Embed(ctx, "deposit")
	require.NoError(t, err)

	// When: a batch containing it is embedded
	vecs, err := cached.EmbedBatch(ctx, []string{"rent", "deposit", "late fee"})

	// Then: only the new texts reach the inner embedder, in order
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Len(t, inner.batches, 1)
	assert.Equal(t, []string{"rent", "late fee"}, inner.batches[0])
	assert.Equal(t, inner.vectorFor("deposit"), vecs[1])
	assert.Equal(t, inner.vectorFor("late fee"), vecs[2])
}

func TestCachedEmbedder_EmbedBatch_CachesIndividualResults(t *testing.T) {
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"text1", "text2", "text3"})
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "text1")

	require.NoError(t, err)
	assert.Equal(t, int64(0), inner.embedCalls.Load(), "individual Embed should hit batch cache")
}

func TestCachedEmbedder_EmbedBatch_AllCached_SkipsInner(t *testing.T) {
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	_, err = cached.EmbedBatch(ctx, []string{"b", "a"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := newCountingEmbedder(8)
	inner.failWith = assert.AnError
	cached := NewCachedEmbedder(inner, 100)

	_, err := cached.Embed(context.Background(), "rent")
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, cached.Len())
}

func TestCachedEmbedder_CacheEviction_OldestEvictedFirst(t *testing.T) {
	// Given: a cache of three entries
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 3)
	ctx := context.Background()

	// When: four texts are embedded
	for _, text := range []string{"text1", "text2", "text3", "text4"} {
		_, _ = cached.Embed(ctx, text)
	}
	inner.embedCalls.Store(0)

	// Then: the first one was evicted
	_, err := cached.Embed(ctx, "text1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.embedCalls.Load(), "evicted text should require new embedding")

	// And: recent texts are still cached
	inner.embedCalls.Store(0)
	_, _ = cached.Embed(ctx, "text3")
	_, _ = cached.Embed(ctx, "text4")
	assert.Equal(t, int64(0), inner.embedCalls.Load(), "recent texts should be cached")
}

func TestNewCachedEmbedder_NonPositiveSizeUsesDefault(t *testing.T) {
	cached := NewCachedEmbedder(newCountingEmbedder(8), 0)

	_, err := cached.Embed(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_ConcurrentAccess_NoRace(t *testing.T) {
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()
	texts := []string{"a", "b", "c", "d", "e"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = cached.Embed(ctx, texts[j%len(texts)])
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, cached.Len())
}

func TestCachedEmbedder_Stats(t *testing.T) {
	cached := NewCachedEmbedder(newCountingEmbedder(8), 100)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "rent")
	require.NoError(t, err)
	_, err = cached.EmbedBatch(ctx, []string{"rent", "deposit"})
	require.NoError(t, err)

	assert.Equal(t, CacheStats{Entries: 2, Hits: 1, Misses: 2}, cached.Stats())
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	// Given: a vector cached under one model
	inner := newCountingEmbedder(8)
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()
	_, err := cached.Embed(ctx, "rent")
	require.NoError(t, err)

	// When: the inner model changes
	inner.modelName = "nomic-embed-text"
	_, err = cached.Embed(ctx, "rent")

	// Then: the question is embedded again
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.embedCalls.Load())
	assert.Equal(t, 2, cached.Len())
}

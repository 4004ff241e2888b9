// Package store provides the per-document retrieval indexes: a lexical BM25 index
// with interchangeable backends and a semantic vector store (flat or HNSW).
//
// Both index families address chunks by the same integer id space, so a lexical hit
// and a semantic hit with equal ids denote the same chunk.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Document represents a chunk to be indexed lexically.
type Document struct {
	ID      int    // Chunk ID
	Content string // Text content
}

// BM25Result represents a single lexical search result.
type BM25Result struct {
	DocID        int
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about a lexical index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// LexicalIndex provides keyword search over a fixed set of chunks.
//
// Search never returns documents sharing no term with the query, returns at most
// limit results, and orders them by descending score with ties broken by lower id.
type LexicalIndex interface {
	// Index adds documents to the index.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	Close() error
}

// BM25Config configures the lexical index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.5)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization. Empty by
	// default: negations like "not" and "no" carry meaning in a lease.
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 1)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.5,
		B:              0.75,
		MinTokenLength: 1,
	}
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       int     // Chunk ID
	Distance float32 // Cosine distance, lower is more similar (0-2)
	Score    float32 // Cosine similarity (-1 to 1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (1536 for text-embedding-ada-002, 256 for static)
	Dimensions int

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest neighbour search over chunk embeddings.
//
// Search returns at most k results ordered by descending similarity with ties
// broken by lower id.
type VectorStore interface {
	// Add inserts vectors under explicit chunk ids. ids[i] owns vectors[i].
	Add(ctx context.Context, ids []int, vectors [][]float32) error

	// Search finds the k nearest neighbours of query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Count returns number of vectors.
	Count() int

	// Dimensions returns the vector dimension the store accepts.
	Dimensions() int

	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrDuplicateID is returned when a vector id is added twice.
type ErrDuplicateID struct {
	ID int
}

func (e ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate vector id %d", e.ID)
}

// errClosed is returned by operations on a closed index.
var errClosed = fmt.Errorf("index is closed")

// sortBM25Results orders by score descending, then id ascending, and truncates to limit.
func sortBM25Results(results []*BM25Result, limit int) []*BM25Result {
	slices.SortFunc(results, func(a, b *BM25Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// sortVectorResults orders by score descending, then id ascending, and truncates to k.
func sortVectorResults(results []*VectorResult, k int) []*VectorResult {
	slices.SortFunc(results, func(a, b *VectorResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

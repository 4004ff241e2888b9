package store

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// FlatStore is an exhaustive cosine-similarity VectorStore. For a single document
// with hundreds of chunks a linear scan is faster than building a graph.
type FlatStore struct {
	mu     sync.RWMutex
	config VectorStoreConfig
	ids    []int
	norms  [][]float32 // unit-length copies of the added vectors
	seen   map[int]struct{}
	closed bool
}

var _ VectorStore = (*FlatStore)(nil)

// NewFlatStore creates an empty flat store.
func NewFlatStore(cfg VectorStoreConfig) (*FlatStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", cfg.Dimensions)
	}
	return &FlatStore{
		config: cfg,
		seen:   make(map[int]struct{}),
	}, nil
}

// Add stores a normalized copy of each vector under its id.
// The whole call is rejected if any vector is invalid.
func (s *FlatStore) Add(ctx context.Context, ids []int, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}

	prepared, err := prepareVectors(ids, vectors, s.config.Dimensions, s.seen)
	if err != nil {
		return err
	}

	for i, id := range ids {
		s.ids = append(s.ids, id)
		s.norms = append(s.norms, prepared[i])
		s.seen[id] = struct{}{}
	}
	return nil
}

// Search compares query against every stored vector.
func (s *FlatStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || len(s.ids) == 0 {
		return []*VectorResult{}, nil
	}

	q, ok := normalized(query)
	if !ok {
		return nil, fmt.Errorf("query vector has zero magnitude")
	}

	results := make([]*VectorResult, len(s.ids))
	for i, id := range s.ids {
		sim := dot(q, s.norms[i])
		results[i] = &VectorResult{ID: id, Distance: 1 - sim, Score: sim}
	}

	return sortVectorResults(results, k), nil
}

// Count returns number of vectors.
func (s *FlatStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Dimensions returns the configured vector dimension.
func (s *FlatStore) Dimensions() int {
	return s.config.Dimensions
}

// Close releases the stored vectors.
func (s *FlatStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.ids = nil
	s.norms = nil
	return nil
}

// prepareVectors validates a batch and returns unit-length copies.
// Zero vectors are rejected: a provider returning one has failed silently.
func prepareVectors(ids []int, vectors [][]float32, dims int, seen map[int]struct{}) ([][]float32, error) {
	batch := make(map[int]struct{}, len(ids))
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dims {
			return nil, ErrDimensionMismatch{Expected: dims, Got: len(v)}
		}
		if _, dup := seen[ids[i]]; dup {
			return nil, ErrDuplicateID{ID: ids[i]}
		}
		if _, dup := batch[ids[i]]; dup {
			return nil, ErrDuplicateID{ID: ids[i]}
		}
		batch[ids[i]] = struct{}{}

		n, ok := normalized(v)
		if !ok {
			return nil, fmt.Errorf("vector for id %d has zero magnitude", ids[i])
		}
		out[i] = n
	}
	return out, nil
}

// normalized returns a unit-length copy of v, or false for a zero or non-finite vector.
func normalized(v []float32) ([]float32, bool) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 || math.IsNaN(sumSquares) || math.IsInf(sumSquares, 0) {
		return nil, false
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) * inv)
	}
	return out, true
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

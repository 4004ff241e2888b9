package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore on a coder/hnsw graph keyed directly by chunk id.
// It is the approximate alternative to FlatStore for large documents.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int]
	config VectorStoreConfig
	seen   map[int]struct{}
	closed bool
}

var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates a new HNSW-based vector store using cosine distance.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
		seen:   make(map[int]struct{}),
	}, nil
}

// Add inserts normalized vectors. The whole call is rejected if any vector is invalid.
func (s *HNSWStore) Add(ctx context.Context, ids []int, vectors [][]float32) error {
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
		s.graph.Add(hnsw.MakeNode(id, prepared[i]))
		s.seen[id] = struct{}{}
	}
	return nil
}

// Search asks the graph for at least EfSearch candidates, then applies the shared
// ordering so equal similarities resolve to the lower id.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	q, ok := normalized(query)
	if !ok {
		return nil, fmt.Errorf("query vector has zero magnitude")
	}

	nodes := s.graph.Search(q, max(k, s.config.EfSearch))

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		distance := s.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ID:       node.Key,
			Distance: distance,
			Score:    1 - distance,
		})
	}

	return sortVectorResults(results, k), nil
}

// Count returns number of vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Len()
}

// Dimensions returns the configured vector dimension.
func (s *HNSWStore) Dimensions() int {
	return s.config.Dimensions
}

// Close releases the graph.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.graph = hnsw.NewGraph[int]()
	return nil
}

package store

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryBM25Index is an exact in-memory BM25 index. It is the default lexical
// backend: a single lease produces hundreds of chunks, which fit trivially in memory.
//
// Per-term document frequencies and document lengths are computed at Index time;
// Search only walks the postings of the query terms.
type MemoryBM25Index struct {
	mu       sync.RWMutex
	config   BM25Config
	analyzer *Analyzer

	docLens  map[int]int            // doc id -> term count
	postings map[string]map[int]int // term -> doc id -> term frequency
	totalLen int
	closed   bool
}

// NewMemoryBM25Index creates an empty in-memory BM25 index.
func NewMemoryBM25Index(config BM25Config) *MemoryBM25Index {
	return &MemoryBM25Index{
		config:   config,
		analyzer: NewAnalyzer(config),
		docLens:  make(map[int]int),
		postings: make(map[string]map[int]int),
	}
}

// Index adds documents to the index. Re-indexing an existing id is rejected.
func (m *MemoryBM25Index) Index(ctx context.Context, docs []*Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, exists := m.docLens[doc.ID]; exists {
			return fmt.Errorf("document %d already indexed", doc.ID)
		}

		terms := m.analyzer.Analyze(doc.Content)
		m.docLens[doc.ID] = len(terms)
		m.totalLen += len(terms)

		for _, term := range terms {
			posting, ok := m.postings[term]
			if !ok {
				posting = make(map[int]int)
				m.postings[term] = posting
			}
			posting[doc.ID]++
		}
	}

	return nil
}

// Search scores every document sharing at least one term with the query.
func (m *MemoryBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed
	}
	if limit <= 0 || len(m.docLens) == 0 {
		return []*BM25Result{}, nil
	}

	terms := m.analyzer.QueryTerms(query)
	if len(terms) == 0 {
		return []*BM25Result{}, nil
	}

	n := float64(len(m.docLens))
	avgLen := float64(m.totalLen) / n
	if avgLen == 0 {
		avgLen = 1
	}
	k1, b := m.config.K1, m.config.B

	byDoc := make(map[int]*BM25Result)
	for _, term := range terms {
		posting, ok := m.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		// Lucene-style idf stays positive even for terms in every chunk.
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for docID, tf := range posting {
			f := float64(tf)
			norm := k1 * (1 - b + b*float64(m.docLens[docID])/avgLen)
			contribution := idf * f * (k1 + 1) / (f + norm)

			r, ok := byDoc[docID]
			if !ok {
				r = &BM25Result{DocID: docID}
				byDoc[docID] = r
			}
			r.Score += contribution
			r.MatchedTerms = append(r.MatchedTerms, term)
		}
	}

	results := make([]*BM25Result, 0, len(byDoc))
	for _, r := range byDoc {
		results = append(results, r)
	}
	return sortBM25Results(results, limit), nil
}

// Stats returns index statistics.
func (m *MemoryBM25Index) Stats() *IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &IndexStats{
		DocumentCount: len(m.docLens),
		TermCount:     len(m.postings),
	}
	if len(m.docLens) > 0 {
		stats.AvgDocLength = float64(m.totalLen) / float64(len(m.docLens))
	}
	return stats
}

// Close releases the index. Further calls fail.
func (m *MemoryBM25Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.docLens = nil
	m.postings = nil
	return nil
}

var _ LexicalIndex = (*MemoryBM25Index)(nil)

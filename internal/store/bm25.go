package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// LeaseTokenizerName is the name of the word tokenizer registered with bleve.
	LeaseTokenizerName = "lease_tokenizer"

	// LeaseAnalyzerName is the name of the analyzer used for chunk content.
	LeaseAnalyzerName = "lease_analyzer"

	contentField = "content"
)

func init() {
	_ = registry.RegisterTokenizer(LeaseTokenizerName, leaseTokenizerConstructor)
}

// BleveBM25Index is a lexical backend on top of an in-memory bleve index.
// Scores follow bleve's scoring model; ordering and filtering follow LexicalIndex.
type BleveBM25Index struct {
	mu       sync.RWMutex
	index    bleve.Index
	analyzer *Analyzer
	closed   bool
}

// BleveDocument is the document structure for bleve indexing.
type BleveDocument struct {
	Content string `json:"content"`
}

// NewBleveBM25Index creates a memory-only bleve index.
func NewBleveBM25Index(config BM25Config) (*BleveBM25Index, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BleveBM25Index{
		index:    idx,
		analyzer: NewAnalyzer(config),
	}, nil
}

// createIndexMapping uses the lease tokenizer only. Stop words and short tokens are
// removed before text reaches bleve so every backend sees identical terms.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(LeaseAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     LeaseTokenizerName,
		"token_filters": []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = LeaseAnalyzerName
	return indexMapping, nil
}

// Index adds documents to the index in a single batch.
func (b *BleveBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		content := strings.Join(b.analyzer.Analyze(doc.Content), " ")
		if err := batch.Index(strconv.Itoa(doc.ID), BleveDocument{Content: content}); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search fetches every match, then applies the shared ordering and limit.
// bleve orders equal scores arbitrarily, so truncating inside bleve would make ties
// nondeterministic.
func (b *BleveBM25Index) Search(ctx context.Context, queryStr string, limit int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed
	}

	terms := b.analyzer.QueryTerms(queryStr)
	if len(terms) == 0 || limit <= 0 {
		return []*BM25Result{}, nil
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("doc count failed: %w", err)
	}
	if docCount == 0 {
		return []*BM25Result{}, nil
	}

	matchQuery := bleve.NewMatchQuery(strings.Join(terms, " "))
	matchQuery.SetField(contentField)

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = int(docCount)
	searchRequest.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*BM25Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", hit.ID, err)
		}
		results = append(results, &BM25Result{
			DocID:        id,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return sortBM25Results(results, limit), nil
}

// Stats returns index statistics.
func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &IndexStats{}
	}

	docCount, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(docCount)}
}

// Close closes the index.
func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// extractMatchedTerms returns the sorted terms that matched in the content field.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	locations := hit.Locations[contentField]
	terms := make([]string, 0, len(locations))
	for term := range locations {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms
}

var _ LexicalIndex = (*BleveBM25Index)(nil)

func leaseTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveLeaseTokenizer{}, nil
}

// bleveLeaseTokenizer splits pre-analyzed content on single spaces.
type bleveLeaseTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveLeaseTokenizer) Tokenize(input []byte) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input)/4)
	pos := 1
	start := 0
	for start < len(input) {
		end := start
		for end < len(input) && input[end] != ' ' {
			end++
		}
		if end > start {
			result = append(result, &analysis.Token{
				Term:     append([]byte(nil), input[start:end]...),
				Start:    start,
				End:      end,
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
		}
		start = end + 1
	}
	return result
}

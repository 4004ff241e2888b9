package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteBM25Index implements LexicalIndex using an in-memory SQLite FTS5 table.
// Scores come from FTS5's bm25() function.
type SQLiteBM25Index struct {
	mu       sync.RWMutex
	db       *sql.DB
	analyzer *Analyzer
	closed   bool
}

var _ LexicalIndex = (*SQLiteBM25Index)(nil)

// NewSQLiteBM25Index creates an in-memory FTS5 index.
func NewSQLiteBM25Index(config BM25Config) (*SQLiteBM25Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database; pin to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pragmas := []string{
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -16384",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteBM25Index{
		db:       db,
		analyzer: NewAnalyzer(config),
	}

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the FTS5 virtual table. Content is stored pre-analyzed.
func (s *SQLiteBM25Index) initSchema() error {
	_, err := s.db.Exec(`
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);`)
	return err
}

// Index adds documents to the index in one transaction.
func (s *SQLiteBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	for _, doc := range docs {
		content := strings.Join(s.analyzer.Analyze(doc.Content), " ")
		if _, err := insertStmt.ExecContext(ctx, doc.ID, content); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Search matches any query term. Terms are quoted so FTS5 never parses them as operators.
func (s *SQLiteBM25Index) Search(ctx context.Context, queryStr string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errClosed
	}

	terms := s.analyzer.QueryTerms(queryStr)
	if len(terms) == 0 || limit <= 0 {
		return []*BM25Result{}, nil
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	matchExpr := strings.Join(quoted, " OR ")

	// bm25() is negative, lower is better.
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, bm25(fts_content) AS score, content
		FROM fts_content
		WHERE content MATCH ?
		ORDER BY score, doc_id
		LIMIT ?`, matchExpr, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := make([]*BM25Result, 0, limit)
	for rows.Next() {
		var (
			docID   int
			score   float64
			content string
		)
		if err := rows.Scan(&docID, &score, &content); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, &BM25Result{
			DocID:        docID,
			Score:        -score,
			MatchedTerms: matchedIn(terms, content),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortBM25Results(results, limit), nil
}

// matchedIn returns the query terms present in pre-analyzed content.
func matchedIn(terms []string, content string) []string {
	present := make(map[string]struct{})
	for _, tok := range strings.Fields(content) {
		present[tok] = struct{}{}
	}
	matched := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := present[t]; ok {
			matched = append(matched, t)
		}
	}
	return matched
}

// Stats returns index statistics.
func (s *SQLiteBM25Index) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return &IndexStats{}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fts_content`).Scan(&count); err != nil {
		return &IndexStats{}
	}
	return &IndexStats{DocumentCount: count}
}

// Close closes the database.
func (s *SQLiteBM25Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

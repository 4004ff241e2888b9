package store

import (
	"fmt"
)

// LexicalBackend names a lexical index implementation.
type LexicalBackend string

const (
	// LexicalBackendMemory is the exact in-memory BM25 index (default).
	LexicalBackendMemory LexicalBackend = "memory"

	// LexicalBackendBleve uses a memory-only bleve index.
	LexicalBackendBleve LexicalBackend = "bleve"

	// LexicalBackendSQLite uses an in-memory SQLite FTS5 table.
	LexicalBackendSQLite LexicalBackend = "sqlite"
)

// LexicalBackends lists the accepted backend names.
var LexicalBackends = []LexicalBackend{LexicalBackendMemory, LexicalBackendBleve, LexicalBackendSQLite}

// NewLexicalIndex creates an empty LexicalIndex for the named backend.
// An empty name selects the default.
func NewLexicalIndex(backend string, config BM25Config) (LexicalIndex, error) {
	switch LexicalBackend(backend) {
	case LexicalBackendMemory, "":
		return NewMemoryBM25Index(config), nil
	case LexicalBackendBleve:
		return NewBleveBM25Index(config)
	case LexicalBackendSQLite:
		return NewSQLiteBM25Index(config)
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (valid options: memory, bleve, sqlite)", backend)
	}
}

// SemanticBackend names a vector store implementation.
type SemanticBackend string

const (
	// SemanticBackendFlat is exhaustive cosine search (default).
	SemanticBackendFlat SemanticBackend = "flat"

	// SemanticBackendHNSW is approximate search on an HNSW graph.
	SemanticBackendHNSW SemanticBackend = "hnsw"
)

// SemanticBackends lists the accepted backend names.
var SemanticBackends = []SemanticBackend{SemanticBackendFlat, SemanticBackendHNSW}

// NewVectorStore creates an empty VectorStore for the named backend.
func NewVectorStore(backend string, config VectorStoreConfig) (VectorStore, error) {
	switch SemanticBackend(backend) {
	case SemanticBackendFlat, "":
		return NewFlatStore(config)
	case SemanticBackendHNSW:
		return NewHNSWStore(config)
	default:
		return nil, fmt.Errorf("unknown semantic backend: %s (valid options: flat, hnsw)", backend)
	}
}

// Package index builds the per-document retrieval indexes.
//
// A DocumentIndex pairs a lexical index and a semantic index over the same
// chunk list. Chunk ids are positions in that list, so both indexes, fusion
// and citations agree on what an id means.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	"github.com/Aman-CERP/leaselens/internal/embed"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/store"
)

// BuildConfig selects backends and batching for Build.
type BuildConfig struct {
	LexicalBackend  string
	SemanticBackend string
	BM25            store.BM25Config

	// HNSWM and HNSWEfSearch tune the hnsw backend; zero keeps defaults.
	HNSWM        int
	HNSWEfSearch int

	Batch embed.BatchOptions
}

// DefaultBuildConfig returns the in-memory exact backends.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		LexicalBackend:  string(store.LexicalBackendMemory),
		SemanticBackend: string(store.SemanticBackendFlat),
		BM25:            store.DefaultBM25Config(),
		Batch: embed.BatchOptions{
			BatchSize:   embed.DefaultBatchSize,
			Concurrency: embed.DefaultConcurrency,
		},
	}
}

// DocumentIndex is the immutable searchable form of one processed document.
type DocumentIndex struct {
	source   string
	pages    int
	chunks   []chunk.Chunk
	lexical  store.LexicalIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	built    time.Time
}

// Source returns the document name the index was built from.
func (d *DocumentIndex) Source() string { return d.source }

// Pages returns the number of pages in the source document.
func (d *DocumentIndex) Pages() int { return d.pages }

// Len returns the number of chunks.
func (d *DocumentIndex) Len() int { return len(d.chunks) }

// BuiltAt returns when the index finished building.
func (d *DocumentIndex) BuiltAt() time.Time { return d.built }

// Chunk returns the chunk with the given id.
func (d *DocumentIndex) Chunk(id int) (chunk.Chunk, bool) {
	if id < 0 || id >= len(d.chunks) {
		return chunk.Chunk{}, false
	}
	return d.chunks[id], true
}

// Chunks returns a copy of every chunk in id order.
func (d *DocumentIndex) Chunks() []chunk.Chunk {
	return append([]chunk.Chunk(nil), d.chunks...)
}

// SearchLexical returns up to k BM25 matches for question.
func (d *DocumentIndex) SearchLexical(ctx context.Context, question string, k int) ([]*store.BM25Result, error) {
	results, err := d.lexical.Search(ctx, question, k)
	if err != nil {
		return nil, lenserrors.Wrap(lenserrors.ErrCodeIndexFailed, fmt.Errorf("lexical search: %w", err))
	}
	return results, nil
}

// SearchSemantic embeds question and returns its k nearest chunks.
func (d *DocumentIndex) SearchSemantic(ctx context.Context, question string, k int) ([]*store.VectorResult, error) {
	vec, err := d.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if err := embed.ValidateVector(vec, d.vectors.Dimensions()); err != nil {
		return nil, err
	}
	results, err := d.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, lenserrors.Wrap(lenserrors.ErrCodeIndexFailed, fmt.Errorf("semantic search: %w", err))
	}
	return results, nil
}

// Close releases both indexes. The embedder is owned by the caller.
func (d *DocumentIndex) Close() error {
	lexErr := d.lexical.Close()
	vecErr := d.vectors.Close()
	if lexErr != nil {
		return lexErr
	}
	return vecErr
}

// Builder turns chunk lists into DocumentIndexes.
type Builder struct {
	config   BuildConfig
	embedder embed.Embedder
}

// NewBuilder creates a Builder. embedder is shared by every index it builds
// and is used both for chunks and for questions.
func NewBuilder(config BuildConfig, embedder embed.Embedder) *Builder {
	return &Builder{config: config, embedder: embedder}
}

// Build indexes chunks lexically and semantically in parallel. Every chunk is
// embedded exactly once. Any failure aborts the build, closes what was built
// and returns the error; a partial index is never returned.
func (b *Builder) Build(ctx context.Context, source string, pages int, chunks []chunk.Chunk) (*DocumentIndex, error) {
	if len(chunks) == 0 {
		return nil, lenserrors.ValidationError("cannot build an index without chunks", nil)
	}
	for i, c := range chunks {
		if c.ID != i {
			return nil, lenserrors.InternalError(fmt.Sprintf("chunk at position %d has id %d", i, c.ID), nil)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		lexical store.LexicalIndex
		vectors store.VectorStore
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, err := b.buildLexical(gctx, chunks)
		lexical = idx
		return err
	})
	g.Go(func() error {
		vs, err := b.buildSemantic(gctx, chunks)
		vectors = vs
		return err
	})

	if err := g.Wait(); err != nil {
		if lexical != nil {
			_ = lexical.Close()
		}
		if vectors != nil {
			_ = vectors.Close()
		}
		slog.Warn("index_build_failed",
			slog.String("source", source),
			slog.Int("chunks", len(chunks)),
			slog.String("error", err.Error()))
		return nil, lenserrors.Wrap(lenserrors.ErrCodeIndexFailed, err)
	}

	doc := &DocumentIndex{
		source:   source,
		pages:    pages,
		chunks:   append([]chunk.Chunk(nil), chunks...),
		lexical:  lexical,
		vectors:  vectors,
		embedder: b.embedder,
		built:    time.Now(),
	}

	if result := NewConsistencyChecker(doc).Check(); !result.Consistent() {
		_ = doc.Close()
		return nil, lenserrors.New(lenserrors.ErrCodeIndexFailed,
			fmt.Sprintf("index is inconsistent: %s", result.Inconsistencies[0].Details), nil)
	}

	slog.Info("index_built",
		slog.String("source", source),
		slog.Int("pages", pages),
		slog.Int("chunks", len(chunks)),
		slog.Int("dimensions", vectors.Dimensions()),
		slog.String("lexical_backend", b.config.LexicalBackend),
		slog.String("semantic_backend", b.config.SemanticBackend),
		slog.Duration("duration", time.Since(start)))
	return doc, nil
}

func (b *Builder) buildLexical(ctx context.Context, chunks []chunk.Chunk) (store.LexicalIndex, error) {
	idx, err := store.NewLexicalIndex(b.config.LexicalBackend, b.config.BM25)
	if err != nil {
		return nil, lenserrors.ConfigurationError(err.Error(), err)
	}
	docs := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = &store.Document{ID: c.ID, Content: c.Text}
	}
	if err := idx.Index(ctx, docs); err != nil {
		return idx, fmt.Errorf("lexical index: %w", err)
	}
	return idx, nil
}

// buildSemantic sizes the vector store from the first embedding rather than
// from the embedder's advertised size, which some providers only learn late.
func (b *Builder) buildSemantic(ctx context.Context, chunks []chunk.Chunk) (store.VectorStore, error) {
	texts := make([]string, len(chunks))
	ids := make([]int, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vecs, err := embed.EmbedAll(ctx, b.embedder, texts, b.config.Batch)
	if err != nil {
		return nil, err
	}

	cfg := store.DefaultVectorStoreConfig(len(vecs[0]))
	if b.config.HNSWM > 0 {
		cfg.M = b.config.HNSWM
	}
	if b.config.HNSWEfSearch > 0 {
		cfg.EfSearch = b.config.HNSWEfSearch
	}
	vs, err := store.NewVectorStore(b.config.SemanticBackend, cfg)
	if err != nil {
		return nil, lenserrors.ConfigurationError(err.Error(), err)
	}
	if err := vs.Add(ctx, ids, vecs); err != nil {
		return vs, fmt.Errorf("vector store: %w", err)
	}
	return vs, nil
}

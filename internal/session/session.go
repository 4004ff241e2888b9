// Package session owns the lifecycle of one analyzed lease.
//
// A Session holds at most one DocumentIndex and a bounded question history.
// Processing a new document replaces both. Questions on one session are
// answered one at a time; a Manager keeps many independent sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	"github.com/Aman-CERP/leaselens/internal/embed"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/extract"
	"github.com/Aman-CERP/leaselens/internal/generate"
	"github.com/Aman-CERP/leaselens/internal/index"
	"github.com/Aman-CERP/leaselens/internal/search"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
)

const (
	// DefaultHistoryLimit is how many exchanges a session remembers.
	DefaultHistoryLimit = 20

	// DefaultProcessingTimeout bounds extraction plus index build.
	DefaultProcessingTimeout = 300 * time.Second

	// DefaultGenerationTimeout bounds one generator call.
	DefaultGenerationTimeout = 120 * time.Second

	// DefaultMaxDocumentBytes is the upload cap (200 MB).
	DefaultMaxDocumentBytes int64 = 200 << 20
)

// NoRelevantContentAnswer is returned when retrieval finds nothing to answer from.
const NoRelevantContentAnswer = "I couldn't find anything in this lease that answers that question."

// SampleQuestions are questions most tenants ask about a lease.
var SampleQuestions = []string{
	"How much is the rent?",
	"What is the security deposit?",
	"Can I have pets?",
	"What are the late fee charges?",
	"How much notice is required to terminate?",
	"Who is responsible for repairs?",
	"Is subletting allowed?",
	"What utilities are included?",
	"Is renters insurance required?",
	"What are the parking rules?",
}

// Config holds everything a Session needs besides its collaborators.
type Config struct {
	Chunking chunk.Options
	Build    index.BuildConfig

	K           int
	TopN        int
	Weights     search.Weights
	RRFConstant int

	// MaxSentences is passed through to the generator prompt.
	MaxSentences int

	HistoryLimit      int
	ProcessingTimeout time.Duration
	GenerationTimeout time.Duration

	// MaxDocumentBytes caps ProcessFile input. Zero or negative means no cap.
	MaxDocumentBytes int64
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		Chunking:          chunk.DefaultOptions(),
		Build:             index.DefaultBuildConfig(),
		K:                 search.DefaultK,
		TopN:              search.DefaultTopN,
		Weights:           search.DefaultWeights(),
		RRFConstant:       search.DefaultRRFConstant,
		MaxSentences:      generate.DefaultMaxSentences,
		HistoryLimit:      DefaultHistoryLimit,
		ProcessingTimeout: DefaultProcessingTimeout,
		GenerationTimeout: DefaultGenerationTimeout,
		MaxDocumentBytes:  DefaultMaxDocumentBytes,
	}
}

// Deps are the collaborators a Session calls out to.
// Metrics may be nil.
type Deps struct {
	Embedder  embed.Embedder
	Generator generate.Generator
	Metrics   *telemetry.AskMetrics
}

// ContextChunk is one retrieved chunk used to answer a question.
type ContextChunk struct {
	Chunk   chunk.Chunk   `json:"chunk"`
	Score   float64       `json:"score"`
	Sources search.Source `json:"sources"`
}

// Answer is the result of Ask.
type Answer struct {
	Question  string         `json:"question"`
	Text      string         `json:"answer"`
	Citations []int          `json:"citations"`
	Context   []ContextChunk `json:"context"`
	NoContent bool           `json:"no_content"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Exchange is one remembered question and answer.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Citations []int     `json:"citations"`
	NoContent bool      `json:"no_content,omitempty"`
	AskedAt   time.Time `json:"asked_at"`
}

// Stats describes the loaded document.
type Stats struct {
	NumChunks      int       `json:"num_chunks"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	Source         string    `json:"source"`
	Pages          int       `json:"pages"`
	HistoryLen     int       `json:"history_len"`
	BuiltAt        time.Time `json:"built_at"`
	EmbeddingModel string    `json:"embedding_model"`
	GenerateModel  string    `json:"generation_model"`
}

// Info summarizes a session for listing.
type Info struct {
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	NumChunks  int       `json:"num_chunks"`
	HistoryLen int       `json:"history_len"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsed   time.Time `json:"last_used"`
}

// Session answers questions about one processed document.
type Session struct {
	id        string
	cfg       Config
	deps      Deps
	chunker   *chunk.Chunker
	builder   *index.Builder
	retriever *search.Retriever
	created   time.Time

	// askMu serializes Ask and every replacement of the document.
	askMu sync.Mutex

	mu       sync.RWMutex
	doc      *index.DocumentIndex
	history  []Exchange
	lastUsed time.Time
	closed   bool
}

// New validates cfg and creates an empty Session with a fresh id.
// Invalid settings fail here, before any document is touched.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Embedder == nil {
		return nil, lenserrors.ConfigurationError("session requires an embedder", nil)
	}
	if deps.Generator == nil {
		return nil, lenserrors.ConfigurationError("session requires a generator", nil)
	}
	if cfg.HistoryLimit <= 0 {
		return nil, lenserrors.ConfigurationError(
			fmt.Sprintf("history limit must be positive, got %d", cfg.HistoryLimit), nil)
	}
	if cfg.ProcessingTimeout <= 0 || cfg.GenerationTimeout <= 0 {
		return nil, lenserrors.ConfigurationError("processing and generation timeouts must be positive", nil)
	}

	chunker, err := chunk.NewChunker(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	retriever, err := search.NewRetriever(
		search.WithK(cfg.K),
		search.WithTopN(cfg.TopN),
		search.WithWeights(cfg.Weights),
		search.WithRRFConstant(cfg.RRFConstant),
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		deps:      deps,
		chunker:   chunker,
		builder:   index.NewBuilder(cfg.Build, deps.Embedder),
		retriever: retriever,
		created:   now,
		lastUsed:  now,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the settings the session was created with.
func (s *Session) Config() Config { return s.cfg }

// ProcessFile extracts name's pages and processes them.
func (s *Session) ProcessFile(ctx context.Context, name string, data []byte) (Stats, error) {
	if err := extract.CheckSize(int64(len(data)), s.cfg.MaxDocumentBytes); err != nil {
		return Stats{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()

	pages, err := extract.ExtractFile(ctx, name, data, s.cfg.MaxDocumentBytes)
	if err != nil {
		return Stats{}, err
	}
	return s.ProcessDocument(ctx, name, pages)
}

// ProcessDocument chunks and indexes pages, then replaces the current
// document and clears the history. The new index is built before anything
// is swapped, so a failure leaves the previous document usable.
func (s *Session) ProcessDocument(ctx context.Context, source string, pages []chunk.Page) (Stats, error) {
	if err := s.checkOpen(); err != nil {
		return Stats{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()

	start := time.Now()
	chunks, err := s.chunker.Chunk(pages)
	if err != nil {
		return Stats{}, err
	}
	if len(chunks) == 0 {
		return Stats{}, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentEmpty,
			"document contains no text to index", nil).WithDetail("source", source)
	}

	doc, err := s.builder.Build(ctx, source, len(pages), chunks)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Stats{}, lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout,
				fmt.Sprintf("processing %s took longer than %s", source, s.cfg.ProcessingTimeout), err)
		}
		return Stats{}, err
	}

	s.askMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.askMu.Unlock()
		_ = doc.Close()
		return Stats{}, errSessionClosed(s.id)
	}
	previous := s.doc
	s.doc = doc
	s.history = nil
	s.lastUsed = time.Now()
	s.mu.Unlock()
	s.askMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}

	slog.Info("document_processed",
		slog.String("session", s.id),
		slog.String("source", source),
		slog.Int("pages", len(pages)),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)))
	return s.Stats(), nil
}

// Ask answers question from the current document. Calls are serialized.
//
// When retrieval finds nothing the answer is NoRelevantContentAnswer and the
// generator is not called. A generator failure leaves the index and history
// untouched.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, lenserrors.New(lenserrors.ErrCodeQueryEmpty, "question is empty", nil)
	}

	s.askMu.Lock()
	defer s.askMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	doc := s.doc
	history := s.recentTurns()
	s.mu.RUnlock()
	if doc == nil {
		return nil, lenserrors.New(lenserrors.ErrCodeNoDocument, "no document has been processed", nil).
			WithSuggestion("Upload a lease document before asking questions")
	}

	start := time.Now()
	event := telemetry.AskEvent{Question: question}
	defer func() {
		event.Latency = time.Since(start)
		s.deps.Metrics.Record(event)
	}()

	retrieved, err := s.retriever.Retrieve(ctx, doc, question)
	if err != nil {
		event.Failed = true
		if ctx.Err() != nil {
			return nil, interrupted(ctx, "retrieval", err)
		}
		return nil, lenserrors.Wrap(lenserrors.ErrCodeInternal, err)
	}
	event.RetrievalLatency = retrieved.Duration

	answer := &Answer{Question: question}
	answer.Context = contextChunks(doc, retrieved.Fused)
	answer.Citations = citationsOf(answer.Context)
	event.ContextCount = len(answer.Context)
	for _, c := range answer.Context {
		switch c.Sources {
		case search.SourceBoth:
			event.Both++
		case search.SourceLexical:
			event.LexicalOnly++
		case search.SourceSemantic:
			event.SemanticOnly++
		}
	}

	if len(answer.Context) == 0 {
		answer.Text = NoRelevantContentAnswer
		answer.NoContent = true
		event.NoContent = true
	} else {
		text, genErr := s.generate(ctx, question, answer.Context, history)
		if genErr != nil {
			event.Failed = true
			return nil, genErr
		}
		answer.Text = text
	}
	answer.Duration = time.Since(start)

	s.remember(Exchange{
		Question:  question,
		Answer:    answer.Text,
		Citations: answer.Citations,
		NoContent: answer.NoContent,
		AskedAt:   start,
	})

	slog.Info("question_answered",
		slog.String("session", s.id),
		slog.Int("context_chunks", len(answer.Context)),
		slog.Any("citations", answer.Citations),
		slog.Bool("no_content", answer.NoContent),
		slog.Duration("duration", answer.Duration))
	return answer, nil
}

// generate calls the generator under its own timeout so a slow provider
// cannot hold the session beyond GenerationTimeout.
func (s *Session) generate(ctx context.Context, question string, chunks []ContextChunk, history []generate.Turn) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	blocks := make([]generate.ContextBlock, len(chunks))
	for i, c := range chunks {
		blocks[i] = generate.ContextBlock{Page: c.Chunk.PageNumber, Text: c.Chunk.Text}
	}

	text, err := s.deps.Generator.Generate(genCtx, generate.Request{
		Question:     question,
		Context:      blocks,
		History:      history,
		MaxSentences: s.cfg.MaxSentences,
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout,
				fmt.Sprintf("answer generation took longer than %s", s.cfg.GenerationTimeout), err)
		}
		return "", lenserrors.Wrap(lenserrors.ErrCodeProviderBadResponse, err)
	}
	return text, nil
}

// contextChunks resolves fused ids against doc. Ids the index does not know
// are dropped.
func contextChunks(doc *index.DocumentIndex, fused []*search.FusedResult) []ContextChunk {
	out := make([]ContextChunk, 0, len(fused))
	for _, f := range fused {
		c, ok := doc.Chunk(f.ChunkID)
		if !ok {
			continue
		}
		out = append(out, ContextChunk{Chunk: c, Score: f.Score, Sources: f.Sources})
	}
	return out
}

// citationsOf returns the distinct page numbers of chunks in ascending order.
func citationsOf(chunks []ContextChunk) []int {
	pages := make([]int, 0, len(chunks))
	for _, c := range chunks {
		pages = append(pages, c.Chunk.PageNumber)
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

// recentTurns must be called with s.mu held.
func (s *Session) recentTurns() []generate.Turn {
	turns := make([]generate.Turn, 0, len(s.history))
	for _, ex := range s.history {
		turns = append(turns, generate.Turn{Question: ex.Question, Answer: ex.Answer})
	}
	return turns
}

func (s *Session) remember(ex Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, ex)
	if over := len(s.history) - s.cfg.HistoryLimit; over > 0 {
		s.history = append([]Exchange(nil), s.history[over:]...)
	}
	s.lastUsed = time.Now()
}

// History returns a copy of the remembered exchanges, oldest first.
func (s *Session) History() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Exchange, len(s.history))
	for i, ex := range s.history {
		ex.Citations = slices.Clone(ex.Citations)
		out[i] = ex
	}
	return out
}

// Citations returns every page cited across the history, ascending.
func (s *Session) Citations() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pages []int
	for _, ex := range s.history {
		pages = append(pages, ex.Citations...)
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

// HasDocument reports whether a document has been processed.
func (s *Session) HasDocument() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// Stats describes the loaded document. NumChunks is zero when none is loaded.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		ChunkSize:      s.cfg.Chunking.Size,
		ChunkOverlap:   s.cfg.Chunking.Overlap,
		HistoryLen:     len(s.history),
		EmbeddingModel: s.deps.Embedder.ModelName(),
		GenerateModel:  s.deps.Generator.ModelName(),
	}
	if s.doc != nil {
		st.NumChunks = s.doc.Len()
		st.Source = s.doc.Source()
		st.Pages = s.doc.Pages()
		st.BuiltAt = s.doc.BuiltAt()
	}
	return st
}

// Info summarizes the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		ID:         s.id,
		HistoryLen: len(s.history),
		CreatedAt:  s.created,
		LastUsed:   s.lastUsed,
	}
	if s.doc != nil {
		info.Source = s.doc.Source()
		info.NumChunks = s.doc.Len()
	}
	return info
}

// LastUsed returns when the session last processed a document or answered.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Reset drops the document and the history.
func (s *Session) Reset() {
	s.askMu.Lock()
	s.mu.Lock()
	doc := s.doc
	s.doc = nil
	s.history = nil
	s.lastUsed = time.Now()
	s.mu.Unlock()
	s.askMu.Unlock()

	if doc != nil {
		_ = doc.Close()
	}
	slog.Debug("session_reset", slog.String("session", s.id))
}

// Close releases the document index. The collaborators in Deps are owned
// by the caller and are not closed.
func (s *Session) Close() error {
	s.askMu.Lock()
	s.mu.Lock()
	doc := s.doc
	s.doc = nil
	s.closed = true
	s.mu.Unlock()
	s.askMu.Unlock()

	if doc != nil {
		return doc.Close()
	}
	return nil
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errSessionClosed(s.id)
	}
	return nil
}

func errSessionClosed(id string) error {
	return lenserrors.New(lenserrors.ErrCodeSessionNotFound, "session has been closed", nil).
		WithDetail("session", id)
}

// interrupted reports a step stopped by ctx. An expired deadline may be retried;
// a caller that cancelled has gone away.
func interrupted(ctx context.Context, step string, cause error) *lenserrors.LensError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout, step+" timed out", cause)
	}
	le := lenserrors.ProviderError(lenserrors.ErrCodeProviderTimeout, step+" was cancelled", cause)
	le.Retryable = false
	return le
}

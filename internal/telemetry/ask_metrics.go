// Package telemetry collects in-process metrics about the questions asked of
// loaded leases. Nothing leaves the process.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
// An ask includes a generation round trip, so the buckets are coarse.
type LatencyBucket string

const (
	BucketP250   LatencyBucket = "p250"   // <250ms
	BucketP1000  LatencyBucket = "p1000"  // 250ms-1s
	BucketP3000  LatencyBucket = "p3000"  // 1-3s
	BucketP10000 LatencyBucket = "p10000" // 3-10s
	BucketSlow   LatencyBucket = "slow"   // >=10s
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 250:
		return BucketP250
	case ms < 1000:
		return BucketP1000
	case ms < 3000:
		return BucketP3000
	case ms < 10000:
		return BucketP10000
	default:
		return BucketSlow
	}
}

// =============================================================================
// Ask Event
// =============================================================================

// AskEvent describes one answered (or failed) question.
type AskEvent struct {
	Question string

	// ContextCount is the number of fused chunks handed to the generator.
	ContextCount int

	// Source mix of the fused chunks.
	LexicalOnly  int
	SemanticOnly int
	Both         int

	NoContent bool
	Failed    bool

	Latency          time.Duration
	RetrievalLatency time.Duration
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int // Current number of items
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Full: the oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items from the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// =============================================================================
// Term Extraction
// =============================================================================

// ExtractTerms returns the lowercased words of a question that are at least
// three letters long, with surrounding punctuation removed.
func ExtractTerms(question string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(w)) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// AskMetricsSnapshot is an immutable copy of the collected metrics.
type AskMetricsSnapshot struct {
	TotalAsks           int64                   `json:"total_asks"`
	NoContentCount      int64                   `json:"no_content_count"`
	FailedCount         int64                   `json:"failed_count"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	SourceMix           map[string]int64        `json:"source_mix"`
	TopTerms            []TermCount             `json:"top_terms"`
	NoContentQuestions  []string                `json:"no_content_questions"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	AvgRetrievalMillis  float64                 `json:"avg_retrieval_ms"`
	Since               time.Time               `json:"since"`
}

// NoContentPercentage returns the share of asks that found nothing relevant.
func (s *AskMetricsSnapshot) NoContentPercentage() float64 {
	if s.TotalAsks == 0 {
		return 0
	}
	return float64(s.NoContentCount) / float64(s.TotalAsks) * 100
}

// =============================================================================
// Ask Metrics
// =============================================================================

// AskMetricsConfig configures the collector.
type AskMetricsConfig struct {
	TopTermsCapacity        int // Max terms to track (default: 100)
	NoContentCapacity       int // Max no-content questions to keep (default: 50)
	RecentQuestionsCapacity int // Max questions tracked for repeats (default: 500)
}

// DefaultAskMetricsConfig returns the default capacities.
func DefaultAskMetricsConfig() AskMetricsConfig {
	return AskMetricsConfig{
		TopTermsCapacity:        100,
		NoContentCapacity:       50,
		RecentQuestionsCapacity: 500,
	}
}

// AskMetrics aggregates AskEvents. Safe for concurrent use; a nil *AskMetrics
// ignores Record calls.
type AskMetrics struct {
	mu sync.Mutex

	total          int64
	noContent      int64
	failed         int64
	latencies      map[LatencyBucket]int64
	sourceMix      map[string]int64
	retrievalTotal time.Duration
	topTerms       *lru.Cache[string, int64]
	noContentQs    *CircularBuffer[string]
	recent         *lru.Cache[string, struct{}]
	repeats        int64
	since          time.Time
}

// NewAskMetrics creates a collector. Zero capacities fall back to defaults.
func NewAskMetrics(cfg AskMetricsConfig) *AskMetrics {
	def := DefaultAskMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.NoContentCapacity <= 0 {
		cfg.NoContentCapacity = def.NoContentCapacity
	}
	if cfg.RecentQuestionsCapacity <= 0 {
		cfg.RecentQuestionsCapacity = def.RecentQuestionsCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQuestionsCapacity)

	return &AskMetrics{
		latencies:   make(map[LatencyBucket]int64),
		sourceMix:   make(map[string]int64),
		topTerms:    topTerms,
		noContentQs: NewCircularBuffer[string](cfg.NoContentCapacity),
		recent:      recent,
		since:       time.Now(),
	}
}

// Record adds one ask to the aggregates.
func (m *AskMetrics) Record(event AskEvent) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies[LatencyToBucket(event.Latency)]++

	if event.Failed {
		m.failed++
		return
	}

	m.retrievalTotal += event.RetrievalLatency
	m.sourceMix["lexical"] += int64(event.LexicalOnly)
	m.sourceMix["semantic"] += int64(event.SemanticOnly)
	m.sourceMix["both"] += int64(event.Both)

	for _, term := range ExtractTerms(event.Question) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.NoContent {
		m.noContent++
		m.noContentQs.Add(event.Question)
	}

	key := hashQuestion(event.Question)
	if _, seen := m.recent.Get(key); seen {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// hashQuestion normalizes case and surrounding whitespace before hashing.
func hashQuestion(q string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(q))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns a copy of the current metrics.
func (m *AskMetrics) Snapshot() *AskMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}
	mix := make(map[string]int64, len(m.sourceMix))
	for k, v := range m.sourceMix {
		mix[k] = v
	}

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})

	var avgRetrieval float64
	if answered := m.total - m.failed; answered > 0 {
		avgRetrieval = float64(m.retrievalTotal.Microseconds()) / 1000 / float64(answered)
	}

	return &AskMetricsSnapshot{
		TotalAsks:           m.total,
		NoContentCount:      m.noContent,
		FailedCount:         m.failed,
		LatencyDistribution: latencies,
		SourceMix:           mix,
		TopTerms:            terms,
		NoContentQuestions:  m.noContentQs.Items(),
		ExactRepeatCount:    m.repeats,
		AvgRetrievalMillis:  avgRetrieval,
		Since:               m.since,
	}
}

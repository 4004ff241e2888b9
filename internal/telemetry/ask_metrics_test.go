package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CircularBuffer Tests
// =============================================================================

func TestCircularBuffer_Add_SingleItem(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	buf.Add("q1")

	items := buf.Items()
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "q1", items[0])
}

func TestCircularBuffer_Add_MultipleItems(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	buf.Add("q1")
	buf.Add("q2")
	buf.Add("q3")

	items := buf.Items()
	assert.Equal(t, 3, len(items))
	assert.Equal(t, []string{"q1", "q2", "q3"}, items)
}

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	// Add more items than capacity
	buf.Add("q1")
	buf.Add("q2")
	buf.Add("q3")
	buf.Add("q4") // Should evict q1
	buf.Add("q5") // Should evict q2

	items := buf.Items()
	assert.Equal(t, 3, len(items))
	// Should contain last 3 items (FIFO eviction)
	assert.Equal(t, []string{"q3", "q4", "q5"}, items)
}

func TestCircularBuffer_Size(t *testing.T) {
	buf := NewCircularBuffer[string](5)

	assert.Equal(t, 0, buf.Size())

	buf.Add("a")
	assert.Equal(t, 1, buf.Size())

	buf.Add("b")
	buf.Add("c")
	assert.Equal(t, 3, buf.Size())

	// Exceed capacity
	buf.Add("d")
	buf.Add("e")
	buf.Add("f") // Evicts "a"
	assert.Equal(t, 5, buf.Size()) // Size capped at capacity
}

func TestCircularBuffer_EmptyItems(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	items := buf.Items()
	assert.Equal(t, 0, len(items))
	assert.NotNil(t, items) // Should return empty slice, not nil
}

func TestCircularBuffer_Clear(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	buf.Add("q1")
	buf.Add("q2")
	buf.Clear()

	assert.Equal(t, 0, buf.Size())
	assert.Equal(t, 0, len(buf.Items()))
}

// =============================================================================
// LatencyBucket Tests
// =============================================================================

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency  time.Duration
		expected LatencyBucket
	}{
		{5 * time.Millisecond, BucketP250},
		{249 * time.Millisecond, BucketP250},
		{250 * time.Millisecond, BucketP1000},
		{999 * time.Millisecond, BucketP1000},
		{1 * time.Second, BucketP3000},
		{2999 * time.Millisecond, BucketP3000},
		{3 * time.Second, BucketP10000},
		{10 * time.Second, BucketSlow},
		{time.Minute, BucketSlow},
	}

	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, LatencyToBucket(tt.latency))
		})
	}
}

// =============================================================================
// AskMetrics Tests
// =============================================================================

func TestAskMetrics_Record_CountsOutcomes(t *testing.T) {
	// Given
	m := NewAskMetrics(AskMetricsConfig{})

	// When: one answered, one empty, one failed ask
	m.Record(AskEvent{Question: "How much is the rent?", ContextCount: 3, LexicalOnly: 1, SemanticOnly: 1, Both: 1,
		Latency: 1500 * time.Millisecond, RetrievalLatency: 20 * time.Millisecond})
	m.Record(AskEvent{Question: "Is there a pool?", NoContent: true, Latency: 100 * time.Millisecond,
		RetrievalLatency: 10 * time.Millisecond})
	m.Record(AskEvent{Question: "Can I sublet?", Failed: true, Latency: 30 * time.Second})

	// Then
	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TotalAsks)
	assert.Equal(t, int64(1), s.NoContentCount)
	assert.Equal(t, int64(1), s.FailedCount)
	assert.Equal(t, []string{"Is there a pool?"}, s.NoContentQuestions)
	assert.Equal(t, map[string]int64{"lexical": 1, "semantic": 1, "both": 1}, s.SourceMix)
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP3000])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP250])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketSlow])
	assert.InDelta(t, 15.0, s.AvgRetrievalMillis, 0.001)
	assert.InDelta(t, 100.0/3, s.NoContentPercentage(), 0.001)
}

func TestAskMetrics_TopTermsSortedByCountThenTerm(t *testing.T) {
	m := NewAskMetrics(AskMetricsConfig{})

	m.Record(AskEvent{Question: "rent due?"})
	m.Record(AskEvent{Question: "Rent amount"})
	m.Record(AskEvent{Question: "deposit amount"})

	terms := m.Snapshot().TopTerms
	require.Len(t, terms, 4)
	assert.Equal(t, TermCount{Term: "amount", Count: 2}, terms[0])
	assert.Equal(t, TermCount{Term: "rent", Count: 2}, terms[1])
	assert.Equal(t, TermCount{Term: "deposit", Count: 1}, terms[2])
	assert.Equal(t, TermCount{Term: "due", Count: 1}, terms[3])
}

func TestAskMetrics_ExactRepeatIgnoresCaseAndWhitespace(t *testing.T) {
	m := NewAskMetrics(AskMetricsConfig{})

	m.Record(AskEvent{Question: "Can I have pets?"})
	m.Record(AskEvent{Question: "  can i have PETS?  "})
	m.Record(AskEvent{Question: "Can I have a cat?"})

	assert.Equal(t, int64(1), m.Snapshot().ExactRepeatCount)
}

func TestAskMetrics_NoContentBufferKeepsNewest(t *testing.T) {
	m := NewAskMetrics(AskMetricsConfig{NoContentCapacity: 2})

	for _, q := range []string{"a?", "b?", "c?"} {
		m.Record(AskEvent{Question: q, NoContent: true})
	}

	assert.Equal(t, []string{"b?", "c?"}, m.Snapshot().NoContentQuestions)
}

func TestAskMetrics_NilIgnoresRecord(t *testing.T) {
	var m *AskMetrics
	assert.NotPanics(t, func() { m.Record(AskEvent{Question: "rent?"}) })
}

func TestAskMetrics_ConcurrentRecord(t *testing.T) {
	m := NewAskMetrics(AskMetricsConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(AskEvent{Question: "rent?", Latency: time.Millisecond})
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(1000), s.TotalAsks)
	assert.Equal(t, int64(999), s.ExactRepeatCount)
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		question string
		expected []string
	}{
		{"How much is the rent?", []string{"how", "much", "the", "rent"}},
		{"Is it $1,200?", []string{"1,200"}},
		{"", nil},
		{"a b", nil},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTerms(tt.question))
		})
	}
}

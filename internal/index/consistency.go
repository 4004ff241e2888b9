package index

import (
	"fmt"
	"log/slog"
	"time"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyLexicalCount means the lexical index holds a different number of chunks.
	InconsistencyLexicalCount InconsistencyType = iota
	// InconsistencyVectorCount means the vector store holds a different number of chunks.
	InconsistencyVectorCount
	// InconsistencyChunkID means a chunk's id does not match its position.
	InconsistencyChunkID
)

// String returns a short name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyLexicalCount:
		return "lexical_count"
	case InconsistencyVectorCount:
		return "vector_count"
	case InconsistencyChunkID:
		return "chunk_id"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-index issue.
type Inconsistency struct {
	Type    InconsistencyType
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunks verified.
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker verifies that both indexes cover exactly the chunk list.
type ConsistencyChecker struct {
	doc *DocumentIndex
}

// NewConsistencyChecker creates a checker for doc.
func NewConsistencyChecker(doc *DocumentIndex) *ConsistencyChecker {
	return &ConsistencyChecker{doc: doc}
}

// Check compares chunk, lexical and vector counts and chunk id positions.
func (c *ConsistencyChecker) Check() *CheckResult {
	start := time.Now()
	var issues []Inconsistency
	want := len(c.doc.chunks)

	lexicalCount := 0
	if stats := c.doc.lexical.Stats(); stats != nil {
		lexicalCount = stats.DocumentCount
	}
	if lexicalCount != want {
		issues = append(issues, Inconsistency{
			Type:    InconsistencyLexicalCount,
			Details: fmt.Sprintf("lexical index has %d chunks, expected %d", lexicalCount, want),
		})
	}

	if n := c.doc.vectors.Count(); n != want {
		issues = append(issues, Inconsistency{
			Type:    InconsistencyVectorCount,
			Details: fmt.Sprintf("vector store has %d chunks, expected %d", n, want),
		})
	}

	for i, ch := range c.doc.chunks {
		if ch.ID != i {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyChunkID,
				Details: fmt.Sprintf("chunk at position %d has id %d", i, ch.ID),
			})
		}
	}

	if len(issues) > 0 {
		slog.Debug("index_counts_mismatch",
			slog.Int("chunks", want),
			slog.Int("lexical", lexicalCount),
			slog.Int("vector", c.doc.vectors.Count()))
	}

	return &CheckResult{
		Checked:         want,
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}
}

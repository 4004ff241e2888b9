// Package search merges lexical and semantic results into one ranked list.
//
// Fusion is weighted reciprocal rank: each source contributes
// weight / (K + rank + 1) for a chunk at 0-indexed rank in that source's
// list and nothing when the chunk is absent. Raw BM25 and cosine scores are
// kept for display but never enter the fused score.
package search

import (
	"slices"

	"github.com/Aman-CERP/leaselens/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// FusedResult represents a single chunk after fusion.
type FusedResult struct {
	ChunkID       int      `json:"chunk_id"`
	Score         float64  `json:"score"`
	LexicalScore  float64  `json:"lexical_score,omitempty"`
	LexicalRank   int      `json:"lexical_rank,omitempty"` // 1-indexed, 0 if absent
	SemanticScore float64  `json:"semantic_score,omitempty"`
	SemanticRank  int      `json:"semantic_rank,omitempty"` // 1-indexed, 0 if absent
	Sources       Source   `json:"sources"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
}

// WeightedRRF fuses two ranked lists with weighted reciprocal rank.
type WeightedRRF struct {
	K int // smoothing constant (default: 60)
}

// NewWeightedRRF creates a fuser. k <= 0 uses DefaultRRFConstant.
func NewWeightedRRF(k int) *WeightedRRF {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &WeightedRRF{K: k}
}

// Contribution is the unweighted share of a chunk at 0-indexed rank.
func (f *WeightedRRF) Contribution(rank int) float64 {
	return 1 / float64(f.K+rank+1)
}

// Fuse merges lexical and semantic results and returns at most topN chunks
// (all when topN <= 0).
//
// A chunk listed twice in one source keeps its first rank. Chunks whose fused
// score is zero, meaning only zero-weighted sources found them, are dropped so
// that weights of 0 and 1 reproduce the other source's ranking exactly.
// Results are ordered by score, then by lower chunk id.
func (f *WeightedRRF) Fuse(
	lexical []*store.BM25Result,
	semantic []*store.VectorResult,
	weights Weights,
	topN int,
) []*FusedResult {
	byID := make(map[int]*FusedResult, len(lexical)+len(semantic))
	get := func(id int) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{ChunkID: id}
		byID[id] = r
		return r
	}

	for rank, lr := range lexical {
		r := get(lr.DocID)
		if r.Sources.Has(SourceLexical) {
			continue
		}
		r.Sources |= SourceLexical
		r.LexicalScore = lr.Score
		r.LexicalRank = rank + 1
		r.MatchedTerms = lr.MatchedTerms
		r.Score += weights.Lexical * f.Contribution(rank)
	}

	for rank, sr := range semantic {
		r := get(sr.ID)
		if r.Sources.Has(SourceSemantic) {
			continue
		}
		r.Sources |= SourceSemantic
		r.SemanticScore = float64(sr.Score)
		r.SemanticRank = rank + 1
		r.Score += weights.Semantic * f.Contribution(rank)
	}

	results := make([]*FusedResult, 0, len(byID))
	for _, r := range byID {
		if r.Score > 0 {
			results = append(results, r)
		}
	}

	slices.SortFunc(results, compareFused)

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// compareFused orders by higher score, then lower chunk id.
func compareFused(a, b *FusedResult) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	default:
		return a.ChunkID - b.ChunkID
	}
}

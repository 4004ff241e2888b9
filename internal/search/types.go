package search

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// Default retrieval settings.
const (
	// DefaultK is how many results each source returns per question.
	DefaultK = 3

	// DefaultTopN is how many fused chunks become answer context.
	DefaultTopN = 3

	// DefaultLexicalWeight weights BM25 ranks in fusion.
	DefaultLexicalWeight = 0.3

	// DefaultSemanticWeight weights embedding ranks in fusion.
	DefaultSemanticWeight = 0.7
)

// Weights configures the relative importance of lexical vs semantic search.
// They are applied as given; nothing renormalizes them to sum to 1.
type Weights struct {
	// Lexical is the weight for BM25 ranks (default: 0.3).
	Lexical float64 `json:"lexical" yaml:"lexical"`

	// Semantic is the weight for embedding ranks (default: 0.7).
	Semantic float64 `json:"semantic" yaml:"semantic"`
}

// DefaultWeights returns the default fusion weights.
func DefaultWeights() Weights {
	return Weights{
		Lexical:  DefaultLexicalWeight,
		Semantic: DefaultSemanticWeight,
	}
}

// Validate rejects negative, non-finite and all-zero weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"lexical": w.Lexical, "semantic": w.Semantic} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return lenserrors.ConfigurationError(
				fmt.Sprintf("%s weight must be a non-negative number, got %v", name, v), nil)
		}
	}
	if w.Lexical == 0 && w.Semantic == 0 {
		return lenserrors.ConfigurationError("lexical and semantic weights cannot both be zero", nil)
	}
	return nil
}

// Source is a set of retrieval paths.
type Source uint8

const (
	// SourceLexical marks a chunk found by BM25.
	SourceLexical Source = 1 << iota
	// SourceSemantic marks a chunk found by embedding similarity.
	SourceSemantic

	// SourceBoth is shorthand for a chunk found by both paths.
	SourceBoth = SourceLexical | SourceSemantic
)

// Has reports whether every path in other is in s.
func (s Source) Has(other Source) bool {
	return s&other == other
}

// Names lists the paths in s, lexical first.
func (s Source) Names() []string {
	names := make([]string, 0, 2)
	if s.Has(SourceLexical) {
		names = append(names, "lexical")
	}
	if s.Has(SourceSemantic) {
		names = append(names, "semantic")
	}
	return names
}

// String returns e.g. "lexical+semantic".
func (s Source) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "+")
}

// MarshalJSON encodes the set as a list of names.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of names.
func (s *Source) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out Source
	for _, n := range names {
		switch n {
		case "lexical":
			out |= SourceLexical
		case "semantic":
			out |= SourceSemantic
		default:
			return fmt.Errorf("unknown source %q", n)
		}
	}
	*s = out
	return nil
}

package generate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/store"
)

// ExtractiveGenerator answers offline by quoting the context sentences that
// share the most words with the question, each tagged with its page.
// It never states anything that is not in the context.
type ExtractiveGenerator struct {
	analyzer *store.Analyzer
}

var _ Generator = (*ExtractiveGenerator)(nil)

// NewExtractiveGenerator creates an offline generator.
func NewExtractiveGenerator() *ExtractiveGenerator {
	// Sentences are picked by content words; "the" and "is" would tie everything.
	cfg := store.DefaultBM25Config()
	cfg.StopWords = store.DefaultEnglishStopWords
	return &ExtractiveGenerator{analyzer: store.NewAnalyzer(cfg)}
}

type candidate struct {
	text  string
	page  int
	block int
	pos   int
	score int
}

// Generate quotes up to MaxSentences matching sentences in document order.
// History is ignored.
func (g *ExtractiveGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Context) == 0 {
		return "", lenserrors.ValidationError("no context to answer from", nil)
	}
	maxSentences := req.MaxSentences
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}

	terms := g.analyzer.QueryTerms(req.Question)

	var candidates []candidate
	for bi, block := range req.Context {
		for si, sentence := range splitSentences(block.Text) {
			candidates = append(candidates, candidate{
				text:  sentence,
				page:  block.Page,
				block: bi,
				pos:   si,
				score: g.overlap(terms, sentence),
			})
		}
	}
	if len(candidates) == 0 {
		return "", lenserrors.ValidationError("context has no text", nil)
	}

	matched := slices.DeleteFunc(slices.Clone(candidates), func(c candidate) bool { return c.score == 0 })
	if len(matched) == 0 {
		// Nothing shares a word with the question; quote the best-ranked chunk's opening.
		c := candidates[0]
		return fmt.Sprintf("%s (Page %d)", c.text, c.page), nil
	}

	slices.SortStableFunc(matched, func(a, b candidate) int { return b.score - a.score })
	if len(matched) > maxSentences {
		matched = matched[:maxSentences]
	}
	slices.SortFunc(matched, func(a, b candidate) int {
		if a.block != b.block {
			return a.block - b.block
		}
		return a.pos - b.pos
	})

	parts := make([]string, len(matched))
	for i, c := range matched {
		parts[i] = fmt.Sprintf("%s (Page %d)", c.text, c.page)
	}
	return strings.Join(parts, " "), nil
}

func (g *ExtractiveGenerator) overlap(terms []string, sentence string) int {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, tok := range g.analyzer.Analyze(sentence) {
		present[tok] = struct{}{}
	}
	n := 0
	for _, t := range terms {
		if _, ok := present[t]; ok {
			n++
		}
	}
	return n
}

// ModelName returns the model identifier.
func (g *ExtractiveGenerator) ModelName() string { return "extractive" }

// Close is a no-op.
func (g *ExtractiveGenerator) Close() error { return nil }

// splitSentences splits on '.', '!' or '?' followed by whitespace or end of
// text, and collapses internal whitespace. "$1,200.00" stays whole.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.Join(strings.Fields(string(runes[start:i+1])), " "); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.Join(strings.Fields(string(runes[start:])), " "); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

package store

import (
	"slices"
	"strings"
	"unicode"
)

// Analyzer turns text into index terms: lowercase word splitting with punctuation
// stripped, short tokens and stop words removed. It is shared by every lexical
// backend so queries and documents are always analyzed the same way.
type Analyzer struct {
	stopWords map[string]struct{}
	minLen    int
}

// NewAnalyzer creates an Analyzer from a BM25Config.
func NewAnalyzer(cfg BM25Config) *Analyzer {
	minLen := cfg.MinTokenLength
	if minLen < 1 {
		minLen = 1
	}
	return &Analyzer{
		stopWords: BuildStopWordMap(cfg.StopWords),
		minLen:    minLen,
	}
}

// Analyze returns the terms of text in order, duplicates included.
func (a *Analyzer) Analyze(text string) []string {
	tokens := TokenizeWords(text)
	out := tokens[:0]
	for _, t := range tokens {
		if len([]rune(t)) < a.minLen {
			continue
		}
		if _, stop := a.stopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// QueryTerms returns the distinct terms of a query, sorted.
func (a *Analyzer) QueryTerms(query string) []string {
	terms := a.Analyze(query)
	slices.Sort(terms)
	return slices.Compact(terms)
}

// TokenizeWords splits text on every rune that is neither a letter nor a digit and
// lowercases the pieces. "$1,200/month" -> ["1", "200", "month"].
func TokenizeWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

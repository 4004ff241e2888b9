// Package chunk splits extracted page text into overlapping fixed-size windows
// that keep their page number and character span for citation.
package chunk

import (
	"fmt"
	"strings"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// Chunker produces fixed-size windows per page. It is safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates opts and returns a Chunker.
// overlap >= size is rejected rather than clamped.
func NewChunker(opts Options) (*Chunker, error) {
	if opts.Size <= 0 {
		return nil, lenserrors.ConfigurationError(
			fmt.Sprintf("chunk size must be positive, got %d", opts.Size), nil)
	}
	if opts.Overlap < 0 {
		return nil, lenserrors.ConfigurationError(
			fmt.Sprintf("chunk overlap must not be negative, got %d", opts.Overlap), nil)
	}
	if opts.Overlap >= opts.Size {
		return nil, lenserrors.ConfigurationError(
			fmt.Sprintf("chunk overlap (%d) must be less than chunk size (%d)", opts.Overlap, opts.Size), nil)
	}
	return &Chunker{size: opts.Size, overlap: opts.Overlap}, nil
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits pages into windows. IDs are assigned in emission order starting at 0.
//
// A window never spans two pages. Windows advance by size-overlap characters and a
// page is finished as soon as a window reaches its end. Whitespace-only windows are
// skipped, so an empty page yields nothing.
func (c *Chunker) Chunk(pages []Page) ([]Chunk, error) {
	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(pages))

	for _, page := range pages {
		if page.Number < 1 {
			return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
				fmt.Sprintf("invalid page number %d", page.Number), nil)
		}

		runes := []rune(page.Text)
		n := len(runes)
		for start := 0; start < n; start += step {
			end := min(start+c.size, n)
			text := string(runes[start:end])
			if strings.TrimSpace(text) != "" {
				chunks = append(chunks, Chunk{
					ID:         len(chunks),
					Text:       text,
					PageNumber: page.Number,
					CharStart:  start,
					CharEnd:    end,
				})
			}
			if end == n {
				break
			}
		}
	}

	return chunks, nil
}

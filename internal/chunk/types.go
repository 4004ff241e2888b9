package chunk

// Defaults for window-based chunking, in characters.
const (
	DefaultSize    = 250
	DefaultOverlap = 50
)

// Page is one page of extracted document text.
type Page struct {
	Number int    // 1-indexed
	Text   string // Extracted text, may be empty
}

// Chunk is a retrievable, page-bounded slice of document text.
//
// Chunks are values: once a document is chunked they are never mutated.
type Chunk struct {
	ID         int    `json:"id"`         // Position in the document's chunk sequence
	Text       string `json:"text"`       // Window text, exactly as it appears on the page
	PageNumber int    `json:"page"`       // 1-indexed source page
	CharStart  int    `json:"char_start"` // Offset of the first character within the page text
	CharEnd    int    `json:"char_end"`   // Exclusive end offset within the page text
}

// Len returns the window length in characters.
func (c Chunk) Len() int {
	return c.CharEnd - c.CharStart
}

// Options configures a Chunker.
type Options struct {
	Size    int // Window length in characters
	Overlap int // Characters shared by consecutive windows of a page
}

// DefaultOptions returns the default window configuration.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// TextExtractor reads plain text. Form feeds separate pages.
type TextExtractor struct{}

// Format returns FormatText.
func (e *TextExtractor) Format() Format { return FormatText }

// Extract splits data on form feeds. Invalid UTF-8 is treated as a binary file.
func (e *TextExtractor) Extract(ctx context.Context, data []byte) ([]chunk.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
			"the file is not valid UTF-8 text", nil)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return splitPages(strings.Split(text, "\f")), nil
}

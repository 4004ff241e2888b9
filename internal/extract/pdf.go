package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// PDFExtractor reads PDF text page by page.
type PDFExtractor struct{}

// Format returns FormatPDF.
func (e *PDFExtractor) Format() Format { return FormatPDF }

// Extract returns one page per PDF page. The parser panics on some malformed
// input; that is reported as an unreadable document.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (pages []chunk.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
				"the PDF is corrupt or uses unsupported features", fmt.Errorf("pdf parser: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, classifyPDFError(err)
	}

	n := reader.NumPage()
	if n == 0 {
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable, "the PDF has no pages", nil)
	}

	pages = make([]chunk.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, chunk.Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
				fmt.Sprintf("cannot read text on page %d", i), err)
		}
		pages = append(pages, chunk.Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

func classifyPDFError(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(err.Error(), "encryption") {
		return lenserrors.ExtractionError(lenserrors.ErrCodeDocumentEncrypted,
			"the PDF is password protected", err)
	}
	return lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
		"the file is not a readable PDF", err)
}

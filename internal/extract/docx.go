package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// DOCXExtractor reads Word documents. Explicit page breaks separate pages;
// a document without any is a single page.
type DOCXExtractor struct{}

// Format returns FormatDOCX.
func (e *DOCXExtractor) Format() Format { return FormatDOCX }

// Extract walks body paragraphs and tables in order.
func (e *DOCXExtractor) Extract(ctx context.Context, data []byte) (pages []chunk.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
				"the DOCX file is corrupt", fmt.Errorf("docx parser: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
			"the file is not a readable DOCX document", err)
	}

	w := &docxPageWriter{}
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			w.paragraph(it)
		case *docx.Table:
			w.table(it)
		}
	}
	return splitPages(w.finish()), nil
}

// docxPageWriter accumulates paragraphs into pages.
type docxPageWriter struct {
	pages   []string
	current []string
	line    strings.Builder
}

func (w *docxPageWriter) paragraph(p *docx.Paragraph) {
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			w.run(c)
		case *docx.Hyperlink:
			w.run(&c.Run)
		}
	}
	w.endParagraph()
}

func (w *docxPageWriter) run(r *docx.Run) {
	for _, rc := range r.Children {
		switch x := rc.(type) {
		case *docx.Text:
			w.line.WriteString(x.Text)
		case *docx.Tab:
			w.line.WriteByte('\t')
		case *docx.BarterRabbet:
			if x.Type == "page" {
				w.endParagraph()
				w.pageBreak()
			} else {
				w.line.WriteByte('\n')
			}
		}
	}
}

// table renders each row as its cells separated by " | ".
func (w *docxPageWriter) table(t *docx.Table) {
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if s := strings.TrimSpace(docxParagraphText(p)); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if row := strings.TrimSpace(strings.Join(cells, " | ")); row != "" {
			w.current = append(w.current, row)
		}
	}
}

func (w *docxPageWriter) endParagraph() {
	if s := strings.TrimSpace(w.line.String()); s != "" {
		w.current = append(w.current, s)
	}
	w.line.Reset()
}

func (w *docxPageWriter) pageBreak() {
	w.pages = append(w.pages, strings.Join(w.current, "\n\n"))
	w.current = nil
}

func (w *docxPageWriter) finish() []string {
	w.endParagraph()
	w.pageBreak()
	return w.pages
}

// docxParagraphText returns a paragraph's text without page handling.
func docxParagraphText(p *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range p.Children {
		var r *docx.Run
		switch c := child.(type) {
		case *docx.Run:
			r = c
		case *docx.Hyperlink:
			r = &c.Run
		default:
			continue
		}
		for _, rc := range r.Children {
			switch x := rc.(type) {
			case *docx.Text:
				buf.WriteString(x.Text)
			case *docx.Tab, *docx.BarterRabbet:
				buf.WriteByte(' ')
			}
		}
	}
	return buf.String()
}

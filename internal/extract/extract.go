// Package extract turns uploaded lease files into numbered page text.
//
// Every extractor returns pages in document order with 1-based numbers. Blank
// pages keep their number so citations match the page a reader sees, even
// though they produce no chunks.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Extractor reads one document format.
type Extractor interface {
	// Extract returns the document's pages in order.
	Extract(ctx context.Context, data []byte) ([]chunk.Page, error)

	// Format returns the format this extractor reads.
	Format() Format
}

var extensions = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".text":     FormatText,
}

// SupportedExtensions returns the recognized file extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// FormatForFile picks a format from the file extension.
func FormatForFile(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", lenserrors.ExtractionError(lenserrors.ErrCodeUnsupportedDocument,
		fmt.Sprintf("unsupported document type %q", ext), nil).
		WithDetail("file", filepath.Base(name)).
		WithSuggestion("Use one of: " + strings.Join(SupportedExtensions(), ", "))
}

// New returns the extractor for format.
func New(format Format) (Extractor, error) {
	switch format {
	case FormatPDF:
		return &PDFExtractor{}, nil
	case FormatDOCX:
		return &DOCXExtractor{}, nil
	case FormatMarkdown:
		return &MarkdownExtractor{}, nil
	case FormatText:
		return &TextExtractor{}, nil
	default:
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeUnsupportedDocument,
			fmt.Sprintf("unsupported document format %q", format), nil)
	}
}

// ForFile returns the extractor for the file's extension.
func ForFile(name string) (Extractor, error) {
	format, err := FormatForFile(name)
	if err != nil {
		return nil, err
	}
	return New(format)
}

// CheckSize rejects documents larger than maxBytes. Zero or negative means no limit.
func CheckSize(size, maxBytes int64) error {
	if maxBytes > 0 && size > maxBytes {
		return lenserrors.ExtractionError(lenserrors.ErrCodeFileTooLarge,
			fmt.Sprintf("document is %s, the limit is %s", formatBytes(size), formatBytes(maxBytes)), nil)
	}
	return nil
}

// ExtractFile checks the size limit, picks an extractor by name and extracts data.
func ExtractFile(ctx context.Context, name string, data []byte, maxBytes int64) ([]chunk.Page, error) {
	if err := CheckSize(int64(len(data)), maxBytes); err != nil {
		return nil, err
	}
	ex, err := ForFile(name)
	if err != nil {
		return nil, err
	}
	pages, err := ex.Extract(ctx, data)
	if err != nil {
		if le, ok := lenserrors.As(err); ok {
			return nil, le.WithDetail("file", filepath.Base(name))
		}
		return nil, err
	}
	return pages, nil
}

// ReadFile loads a document from disk. The size limit is checked before reading.
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
			fmt.Sprintf("cannot open %s", filepath.Base(path)), err)
	}
	if info.IsDir() {
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
			fmt.Sprintf("%s is a directory", filepath.Base(path)), nil)
	}
	if err := CheckSize(info.Size(), maxBytes); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
			fmt.Sprintf("cannot read %s", filepath.Base(path)), err)
	}
	return data, nil
}

// splitPages numbers parts from 1, keeping blank parts.
func splitPages(parts []string) []chunk.Page {
	pages := make([]chunk.Page, len(parts))
	for i, p := range parts {
		pages[i] = chunk.Page{Number: i + 1, Text: strings.TrimSpace(p)}
	}
	return pages
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}

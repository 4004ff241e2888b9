package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

func TestForFile_PicksByExtension(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"lease.pdf", FormatPDF},
		{"LEASE.PDF", FormatPDF},
		{"addendum.docx", FormatDOCX},
		{"notes.md", FormatMarkdown},
		{"notes.markdown", FormatMarkdown},
		{"lease.txt", FormatText},
		{"/tmp/dir.with.dots/lease.text", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := ForFile(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.format, ex.Format())
		})
	}
}

func TestForFile_UnsupportedExtension(t *testing.T) {
	for _, name := range []string{"lease.doc", "scan.png", "noextension"} {
		_, err := ForFile(name)
		assert.Equal(t, lenserrors.ErrCodeUnsupportedDocument, lenserrors.GetCode(err), name)
		assert.True(t, lenserrors.IsExtraction(err))
	}
}

func TestForFile_UnsupportedExtensionSuggestsSupportedTypes(t *testing.T) {
	_, err := ForFile("lease.doc")

	le, ok := lenserrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Use one of: .docx, .markdown, .md, .pdf, .text, .txt", le.Suggestion)
}

func TestSupportedExtensions_Sorted(t *testing.T) {
	assert.Equal(t, []string{".docx", ".markdown", ".md", ".pdf", ".text", ".txt"}, SupportedExtensions())
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, CheckSize(100, 100))
	assert.NoError(t, CheckSize(1<<40, 0))

	err := CheckSize(3<<20, 2<<20)
	require.Error(t, err)
	assert.Equal(t, lenserrors.ErrCodeFileTooLarge, lenserrors.GetCode(err))
	assert.Contains(t, err.Error(), "3.0 MB")
}

func TestExtractFile(t *testing.T) {
	// Given
	data := []byte("Page one.\fPage two.")

	// When
	pages, err := ExtractFile(context.Background(), "lease.txt", data, 1024)

	// Then
	require.NoError(t, err)
	assert.Equal(t, []chunk.Page{{Number: 1, Text: "Page one."}, {Number: 2, Text: "Page two."}}, pages)

	_, err = ExtractFile(context.Background(), "lease.txt", data, 4)
	assert.Equal(t, lenserrors.ErrCodeFileTooLarge, lenserrors.GetCode(err))

	_, err = ExtractFile(context.Background(), "lease.pdf", data, 0)
	le, ok := lenserrors.As(err)
	require.True(t, ok)
	assert.Equal(t, lenserrors.ErrCodeDocumentUnreadable, le.Code)
	assert.Equal(t, "lease.pdf", le.Details["file"])
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lease.txt")
	require.NoError(t, os.WriteFile(path, []byte("Rent is due monthly."), 0o600))

	data, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "Rent is due monthly.", string(data))

	_, err = ReadFile(path, 5)
	assert.Equal(t, lenserrors.ErrCodeFileTooLarge, lenserrors.GetCode(err))

	_, err = ReadFile(filepath.Join(dir, "missing.txt"), 0)
	assert.Equal(t, lenserrors.ErrCodeDocumentUnreadable, lenserrors.GetCode(err))

	_, err = ReadFile(dir, 0)
	assert.Equal(t, lenserrors.ErrCodeDocumentUnreadable, lenserrors.GetCode(err))
}

func TestTextExtractor(t *testing.T) {
	ex := &TextExtractor{}

	pages, err := ex.Extract(context.Background(), []byte("Clause 1.\r\nClause 2.\f\f  Clause 3.  "))
	require.NoError(t, err)
	assert.Equal(t, []chunk.Page{
		{Number: 1, Text: "Clause 1.\nClause 2."},
		{Number: 2, Text: ""},
		{Number: 3, Text: "Clause 3."},
	}, pages)

	_, err = ex.Extract(context.Background(), []byte{0xff, 0xfe, 0x00})
	assert.Equal(t, lenserrors.ErrCodeDocumentUnreadable, lenserrors.GetCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ex.Extract(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New("rtf")
	assert.Equal(t, lenserrors.ErrCodeUnsupportedDocument, lenserrors.GetCode(err))
}

// Package output formats CLI output: status lines, answers with their
// sources, and document stats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/leaselens/internal/session"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styles Styles
	color  bool
}

// New creates a Writer, colored only when out is a terminal and NO_COLOR
// is unset.
func New(out io.Writer) *Writer {
	color := ColorEnabled(out)
	styles := NoColorStyles()
	if color {
		styles = DefaultStyles()
	}
	return &Writer{out: out, styles: styles, color: color}
}

// Status prints a message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with a checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section title.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an aligned "label: value" line.
func (w *Writer) KeyValue(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-16s", label+":")), value)
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Answer prints the answer text followed by the cited pages. With
// showSources each retrieved chunk is listed with its score and the
// retrieval paths that found it.
func (w *Writer) Answer(a *session.Answer, showSources bool) {
	if w.color {
		_, _ = fmt.Fprintln(w.out, w.styles.Panel.Render(a.Text))
	} else {
		_, _ = fmt.Fprintln(w.out, a.Text)
	}

	if len(a.Citations) > 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("Pages: "+FormatPages(a.Citations)))
	}

	if !showSources || len(a.Context) == 0 {
		return
	}
	w.Newline()
	w.Header("Sources")
	for i, c := range a.Context {
		meta := fmt.Sprintf("[%d] page %d, score %.4f, %s", i+1, c.Chunk.PageNumber, c.Score, c.Sources)
		_, _ = fmt.Fprintln(w.out, w.styles.Accent.Render(meta))
		_, _ = fmt.Fprintf(w.out, "    %s\n", Truncate(c.Chunk.Text, 240))
	}
}

// Stats prints document statistics.
func (w *Writer) Stats(s session.Stats) {
	w.Header("Document")
	w.KeyValue("Source", s.Source)
	w.KeyValue("Pages", s.Pages)
	w.KeyValue("Chunks", s.NumChunks)
	w.KeyValue("Chunk size", fmt.Sprintf("%d (overlap %d)", s.ChunkSize, s.ChunkOverlap))
	w.KeyValue("Embedding model", s.EmbeddingModel)
	w.KeyValue("Answer model", s.GenerateModel)
	w.KeyValue("Questions", s.HistoryLen)
	if !s.BuiltAt.IsZero() {
		w.KeyValue("Indexed", s.BuiltAt.Format("2006-01-02 15:04:05"))
	}
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	// Carriage return for in-place updates.
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// FormatPages renders sorted page numbers, e.g. "1, 2, 5".
func FormatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}

// Truncate shortens s to at most n runes on one line, adding an ellipsis.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-1]) + "…"
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

package extract

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// frontmatterPattern matches a leading YAML block: ---\n...\n---
var frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)

// MarkdownExtractor reads Markdown as plain prose. Thematic breaks (---, ***)
// and form feeds separate pages. Markup is dropped; code blocks keep their text.
type MarkdownExtractor struct{}

// Format returns FormatMarkdown.
func (e *MarkdownExtractor) Format() Format { return FormatMarkdown }

// Extract parses data with goldmark.
func (e *MarkdownExtractor) Extract(ctx context.Context, data []byte) ([]chunk.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	src = frontmatterPattern.ReplaceAll(src, nil)

	md := goldmark.New()
	var parts []string
	for _, section := range bytes.Split(src, []byte("\f")) {
		doc := md.Parser().Parse(text.NewReader(section))
		if doc == nil {
			return nil, lenserrors.ExtractionError(lenserrors.ErrCodeDocumentUnreadable,
				"the Markdown document could not be parsed", nil)
		}

		var blocks []string
		for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
			if _, ok := n.(*ast.ThematicBreak); ok {
				parts = append(parts, strings.Join(blocks, "\n\n"))
				blocks = nil
				continue
			}
			if t := blockText(n, section); t != "" {
				blocks = append(blocks, t)
			}
		}
		parts = append(parts, strings.Join(blocks, "\n\n"))
	}
	return splitPages(parts), nil
}

// blockText returns the readable text of a block node.
func blockText(n ast.Node, src []byte) string {
	switch n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return rawLines(n, src)
	case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
		return inlineText(n, src)
	case *ast.ThematicBreak:
		return ""
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func rawLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

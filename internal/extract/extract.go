// Package extract turns uploaded study material into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"studyrag/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var ErrExtraction = errors.New("extraction failed")

// Supported reports whether name has an extension Extract understands.
func Supported(name string) bool {
	switch Ext(name) {
	case ".pdf", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Extract dispatches on the file extension. PDF pages are joined with
// util.PageBreakMarker so the chunker can recover page numbers.
func Extract(name string, data []byte) (string, error) {
	var (
		out string
		err error
	)
	switch Ext(name) {
	case ".pdf":
		out, err = PDF(data)
	case ".md", ".markdown":
		out = Markdown(data)
	case ".txt":
		out = string(data)
	default:
		return "", fmt.Errorf("%w: %s: %w", ErrExtraction, name, util.ErrUnsupportedFormat)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExtraction, name, err)
	}
	out = strings.TrimSpace(util.SanitizeText(out))
	if out == "" {
		return "", fmt.Errorf("%w: %s: %w", ErrExtraction, name, util.ErrNoExtractableText)
	}
	return out, nil
}

func PDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(content))
	}
	return strings.Join(pages, "\n"+util.PageBreakMarker+"\n"), nil
}

// Markdown flattens the document to text blocks separated by blank lines.
// Headings, paragraphs, list items and code blocks each become one block.
func Markdown(data []byte) string {
	reader := text.NewReader(data)
	doc := goldmark.New().Parser().Parse(reader)
	src := reader.Source()

	blocks := make([]string, 0, 16)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			if s := strings.TrimSpace(inlineText(node, src)); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var b strings.Builder
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			if s := strings.TrimSpace(b.String()); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(blocks, "\n\n")
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.CodeSpan:
			for cc := t.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if tt, ok := cc.(*ast.Text); ok {
					b.Write(tt.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

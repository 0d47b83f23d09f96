package content

import (
	"mime"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Mime types of the content the peer serves
const (
	MimeMarkdown = "text/markdown"
	MimeJSON     = "application/json"
	MimeText     = "text/plain"
	MimeBinary   = "application/octet-stream"
)

var markdown = goldmark.New()

// MarkdownTitle returns the text of the first heading in src, or "" when
// the document has none
func MarkdownTitle(src []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = strings.TrimSpace(inlineText(h, src))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

// inlineText concatenates the literal text below n
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

// MimeType guesses the mime type of a content path from its extension
func MimeType(rel string) string {
	switch ext := strings.ToLower(path.Ext(rel)); ext {
	case ".md", ".markdown":
		return MimeMarkdown
	case ".json":
		return MimeJSON
	case ".txt", "":
		return MimeText
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return MimeBinary
	}
}

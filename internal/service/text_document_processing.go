package service

import (
	"bytes"
	"path/filepath"
	"strings"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// TextFormat returns the lower-case extension of name without the dot.
func TextFormat(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ExtractTextDocument returns the normalised plain text of a txt, md or html
// note upload. Other formats wrap domain.ErrInvalidFile.
func ExtractTextDocument(format string, data []byte) (string, error) {
	raw := bytes.ToValidUTF8(data, nil)
	switch format {
	case "txt", "md":
		return normalizeText(string(raw)), nil
	case "html", "htm":
		return normalizeText(htmlText(raw)), nil
	default:
		return "", eris.Wrapf(domain.ErrInvalidFile, "unsupported text format %q", format)
	}
}

// Elements that start a new paragraph, and elements whose text is dropped.
var (
	htmlBlockTags = map[string]bool{
		"p": true, "div": true, "section": true, "article": true, "blockquote": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"ul": true, "ol": true, "li": true, "tr": true, "table": true,
	}
	htmlSkipTags = map[string]bool{
		"head": true, "title": true, "script": true, "style": true, "nav": true, "noscript": true,
	}
)

type htmlTextWriter struct {
	sb strings.Builder
}

func (w *htmlTextWriter) paragraph() {
	w.sb.WriteString("\n\n")
}

func (w *htmlTextWriter) word(s string) {
	if w.sb.Len() > 0 {
		if last := w.sb.String()[w.sb.Len()-1]; last != '\n' && last != ' ' {
			w.sb.WriteByte(' ')
		}
	}
	w.sb.WriteString(s)
}

func (w *htmlTextWriter) visit(n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if htmlSkipTags[tag] {
			return
		}
		if tag == "br" {
			w.sb.WriteByte('\n')
		}
		if htmlBlockTags[tag] {
			w.paragraph()
			defer w.paragraph()
		}
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			w.word(t)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c)
	}
}

func htmlText(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var w htmlTextWriter
	w.visit(doc)
	return w.sb.String()
}

// normalizeText unifies line endings, trims every line and keeps at most
// one blank line between paragraphs.
func normalizeText(s string) string {
	s = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ", "\x00", "").Replace(s)

	var out []string
	blankRun := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blankRun && len(out) > 0 {
				out = append(out, "")
			}
			blankRun = true
			continue
		}
		blankRun = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

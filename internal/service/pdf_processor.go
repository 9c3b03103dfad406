package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"legal-doc-analyzer/internal/domain"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/net/html"
)

const (
	// DefaultMinBlockChars drops headers, page numbers and other fragments.
	DefaultMinBlockChars = 50
	// DefaultPageTimeout bounds MuPDF's work on a single page.
	DefaultPageTimeout = 90 * time.Second

	// Lines further apart than this many line heights start a new block.
	blockGapFactor = 1.5
	// Average glyph width as a fraction of the font size, used to estimate
	// line widths since MuPDF's HTML output carries no right edge.
	glyphWidthFactor = 0.5
)

// PDFProcessor extracts positioned text blocks from PDF bytes with MuPDF.
type PDFProcessor struct {
	logger        domain.Logger
	minBlockChars int
	pageTimeout   time.Duration
}

var _ domain.TextBlockExtractor = (*PDFProcessor)(nil)

// NewPDFProcessor creates a new PDF processor. Non-positive values fall back
// to the defaults.
func NewPDFProcessor(logger domain.Logger, minBlockChars int, pageTimeout time.Duration) *PDFProcessor {
	if minBlockChars <= 0 {
		minBlockChars = DefaultMinBlockChars
	}
	if pageTimeout <= 0 {
		pageTimeout = DefaultPageTimeout
	}
	return &PDFProcessor{
		logger:        logger,
		minBlockChars: minBlockChars,
		pageTimeout:   pageTimeout,
	}
}

// Extract returns the document's text blocks in reading order. It never
// fails: a document that cannot be opened yields an empty result and a page
// that cannot be read contributes no blocks.
func (p *PDFProcessor) Extract(data []byte) domain.ExtractionResult {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		p.logger.Warn("PDF could not be opened", "error", err, "size", len(data))
		return domain.ExtractionResult{}
	}
	defer doc.Close()

	numPages := doc.NumPage()
	blocks := make([]domain.TextBlock, 0)
	for pageNum := 0; pageNum < numPages; pageNum++ {
		p.logger.Debug("PDF processing page", "page", pageNum+1, "total", numPages)

		markup, err := p.pageHTML(doc, pageNum)
		if err != nil {
			p.logger.Warn("Failed to extract text from page", "page", pageNum+1, "total", numPages, "error", err)
			continue
		}

		var fallbackW, fallbackH float64
		if rect, err := doc.Bound(pageNum); err == nil {
			fallbackW, fallbackH = float64(rect.Dx()), float64(rect.Dy())
		}

		layout, err := parsePageHTML(markup)
		if err != nil {
			p.logger.Warn("Failed to parse page layout", "page", pageNum+1, "error", err)
			continue
		}
		if layout.width <= 0 || layout.height <= 0 {
			layout.width, layout.height = fallbackW, fallbackH
		}
		blocks = append(blocks, layout.blocks(pageNum+1, p.minBlockChars)...)
	}

	return domain.ExtractionResult{Blocks: blocks, PageCount: numPages}
}

// ExtractPlainText joins the extracted blocks into one text.
func (p *PDFProcessor) ExtractPlainText(data []byte) (string, int) {
	res := p.Extract(data)
	return res.FullText(), res.PageCount
}

// pageHTML renders one page, giving up after the page timeout. The rendering
// goroutine is left to finish on its own; Close waits for it.
func (p *PDFProcessor) pageHTML(doc *fitz.Document, pageNum int) (string, error) {
	type pageResult struct {
		markup string
		err    error
	}
	resultCh := make(chan pageResult, 1)
	go func() {
		m, e := doc.HTML(pageNum, false)
		resultCh <- pageResult{markup: m, err: e}
	}()

	select {
	case res := <-resultCh:
		return res.markup, res.err
	case <-time.After(p.pageTimeout):
		return "", fmt.Errorf("timeout after %v", p.pageTimeout)
	}
}

// htmlLine is one positioned <p> from MuPDF's page HTML.
type htmlLine struct {
	top, left  float64
	lineHeight float64
	fontSize   float64
	text       string
}

type pageLayout struct {
	width, height float64
	lines         []htmlLine
}

// parsePageHTML reads the page size from the page <div> and one line per <p>.
func parsePageHTML(markup string) (*pageLayout, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	layout := &pageLayout{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "div":
				if strings.HasPrefix(attr(n, "id"), "page") && layout.width == 0 {
					style := parseStyle(attr(n, "style"))
					layout.width = points(style["width"])
					layout.height = points(style["height"])
				}
			case "p":
				style := parseStyle(attr(n, "style"))
				line := htmlLine{
					top:        points(style["top"]),
					left:       points(style["left"]),
					lineHeight: points(style["line-height"]),
					fontSize:   fontSize(n),
					text:       collapseSpaces(textContent(n)),
				}
				if line.text != "" {
					layout.lines = append(layout.lines, line)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if layout.width == 0 && len(layout.lines) == 0 {
		return nil, errors.New("no page content in markup")
	}
	return layout, nil
}

// blocks merges consecutive lines into paragraphs and drops short ones.
func (l *pageLayout) blocks(pageNumber, minChars int) []domain.TextBlock {
	var out []domain.TextBlock
	var group []htmlLine

	flush := func() {
		if len(group) == 0 {
			return
		}
		tb := l.block(group, pageNumber)
		group = group[:0]
		if utf8.RuneCountInString(strings.TrimSpace(tb.Text)) < minChars {
			return
		}
		out = append(out, tb)
	}

	for _, line := range l.lines {
		if len(group) > 0 && !continues(group[len(group)-1], line) {
			flush()
		}
		group = append(group, line)
	}
	flush()
	return out
}

func continues(prev, next htmlLine) bool {
	h := prev.lineHeight
	if h <= 0 {
		h = prev.fontSize
	}
	gap := next.top - prev.top
	return gap >= 0 && gap <= blockGapFactor*h
}

func (l *pageLayout) block(lines []htmlLine, pageNumber int) domain.TextBlock {
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := 0.0, 0.0
	texts := make([]string, 0, len(lines))

	for _, ln := range lines {
		size := ln.fontSize
		if size <= 0 {
			size = ln.lineHeight
		}
		right := ln.left + float64(utf8.RuneCountInString(ln.text))*size*glyphWidthFactor
		if l.width > 0 && right > l.width {
			right = l.width
		}
		minX = math.Min(minX, ln.left)
		minY = math.Min(minY, ln.top)
		maxX = math.Max(maxX, right)
		maxY = math.Max(maxY, ln.top+ln.lineHeight)
		texts = append(texts, ln.text)
	}

	return domain.TextBlock{
		Text:       strings.Join(texts, "\n"),
		PageNumber: pageNumber,
		BBox:       domain.BBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY},
		PageWidth:  l.width,
		PageHeight: l.height,
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// parseStyle splits an inline CSS declaration list.
func parseStyle(style string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return out
}

// points parses "12.5pt" (or a bare number) and returns 0 when unreadable.
func points(v string) float64 {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// fontSize returns the first font-size declared inside a line.
func fontSize(n *html.Node) float64 {
	if n.Type == html.ElementNode {
		if fs := points(parseStyle(attr(n, "style"))["font-size"]); fs > 0 {
			return fs
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if fs := fontSize(c); fs > 0 {
			return fs
		}
	}
	return 0
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

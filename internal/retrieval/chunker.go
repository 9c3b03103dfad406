// Package retrieval selects relevant context for question answering with
// overlapping text chunks and lexical TF-IDF scoring.
package retrieval

import (
	"strings"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Span is one chunk of a source text. Start and End are rune offsets, and Text
// is exactly runes[Start:End] of the source.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping windows that prefer to end on a
// sentence terminator or newline.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a chunker with the given options.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// ChunkSize returns the configured window size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in order. Text no longer than the window
// yields a single chunk; whitespace-only chunks are dropped.
func (c *Chunker) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	if n <= c.chunkSize {
		return []Span{{Index: 0, Start: 0, End: n, Text: text}}
	}

	spans := make([]Span, 0, n/(c.chunkSize-c.overlap)+1)
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end >= n {
			end = n
		} else if bp := breakPoint(runes[start:end]); bp > c.chunkSize/2 {
			end = start + bp + 1
		}

		if chunk := string(runes[start:end]); strings.TrimSpace(chunk) != "" {
			spans = append(spans, Span{Index: len(spans), Start: start, End: end, Text: chunk})
		}
		if end == n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// breakPoint returns the index of the last ". " period or newline in window,
// or -1.
func breakPoint(window []rune) int {
	best := -1
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			best = i
			break
		}
		if window[i] == '.' && i+1 < len(window) && window[i+1] == ' ' {
			best = i
			break
		}
	}
	return best
}

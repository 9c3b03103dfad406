package domain

import "strings"

// BBox is a block's bounding rectangle in PDF points, origin top-left.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// TextBlock is one positioned piece of extracted text.
type TextBlock struct {
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number"` // 1-indexed
	BBox       BBox    `json:"bbox"`
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
}

// ExtractionResult is the output of a TextBlockExtractor.
type ExtractionResult struct {
	Blocks    []TextBlock `json:"blocks"`
	PageCount int         `json:"page_count"`
}

// FullText joins block texts in reading order, separated by blank lines.
func (r ExtractionResult) FullText() string {
	parts := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Vertices returns the four corners clockwise from the top-left.
func (b BBox) Vertices() [4]Vertex {
	return [4]Vertex{
		{X: b.X, Y: b.Y},
		{X: b.X + b.W, Y: b.Y},
		{X: b.X + b.W, Y: b.Y + b.H},
		{X: b.X, Y: b.Y + b.H},
	}
}

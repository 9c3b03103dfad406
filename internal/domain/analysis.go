package domain

import "time"

// RiskCategory is the traffic-light risk band of a clause.
type RiskCategory string

const (
	CategoryRed    RiskCategory = "Red"
	CategoryYellow RiskCategory = "Yellow"
	CategoryGreen  RiskCategory = "Green"
)

// Valid reports whether c is one of the three known bands.
func (c RiskCategory) Valid() bool {
	switch c {
	case CategoryRed, CategoryYellow, CategoryGreen:
		return true
	}
	return false
}

// ClauseSource records which path produced a clause.
type ClauseSource string

const (
	ClauseSourceAI    ClauseSource = "ai"
	ClauseSourceRules ClauseSource = "rules"
)

// Vertex is a corner of a bounding polygon.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is the polygon form consumed by the viewer overlay.
type BoundingBox struct {
	Vertices [4]Vertex `json:"vertices"`
}

// Entity is a named thing found in a clause (Party, Date, Money).
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// LegalTerm is a term of art with a short definition.
type LegalTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// ClauseAnalysis is the validated, defaulted record produced for one clause.
type ClauseAnalysis struct {
	Score       float64      `json:"score"`
	Category    RiskCategory `json:"category"`
	Type        string       `json:"type"`
	Explanation string       `json:"explanation"`
	Summary     string       `json:"summary"`
	Entities    []Entity     `json:"entities"`
	LegalTerms  []LegalTerm  `json:"legal_terms"`
}

// DefaultClauseAnalysis is returned whenever a model response lacks usable fields.
func DefaultClauseAnalysis() ClauseAnalysis {
	return ClauseAnalysis{
		Score:       0.5,
		Category:    CategoryYellow,
		Type:        "General",
		Explanation: "Analysis unavailable",
		Summary:     "",
		Entities:    []Entity{},
		LegalTerms:  []LegalTerm{},
	}
}

// Clause is a risk-scored text block with its position on the page.
type Clause struct {
	ID          string       `json:"id"`
	PageNumber  int          `json:"page_number"`
	Text        string       `json:"text"`
	BoundingBox BoundingBox  `json:"bounding_box"`
	PageWidth   float64      `json:"ocr_page_width"`
	PageHeight  float64      `json:"ocr_page_height"`
	Score       float64      `json:"score"`
	Category    RiskCategory `json:"category"`
	Type        string       `json:"type"`
	Explanation string       `json:"explanation"`
	Summary     string       `json:"summary"`
	Entities    []Entity     `json:"entities"`
	LegalTerms  []LegalTerm  `json:"legal_terms"`
	Source      ClauseSource `json:"source"`
}

// DocumentStats summarises a finished analysis.
type DocumentStats struct {
	Pages   int `json:"pages"`
	Words   int `json:"words"`
	Clauses int `json:"clauses"`
	Red     int `json:"red"`
	Yellow  int `json:"yellow"`
	Green   int `json:"green"`
}

// AnalysisResult is written once per successful pipeline run.
type AnalysisResult struct {
	DocumentID  string        `json:"document_id"`
	FullText    string        `json:"full_text"`
	Clauses     []Clause      `json:"clauses"`
	SummaryText string        `json:"summary_text"`
	Stats       DocumentStats `json:"stats"`
	CreatedAt   time.Time     `json:"created_at"`
}

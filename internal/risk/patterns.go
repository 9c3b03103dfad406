package risk

import (
	"regexp"

	"legal-doc-analyzer/internal/domain"
)

// PatternTableVersion identifies the canonical pattern table below. Bump it
// whenever a row is added, removed or reordered.
const PatternTableVersion = "2024.2"

// Pattern is one row of the risk table. Rows are evaluated in order and the
// first match decides the clause's category and type.
type Pattern struct {
	Expr     string
	Category domain.RiskCategory
	Type     string
	// Weight scales the length bonus of the category's band. 1.0 keeps the
	// plain band formula.
	Weight float64
}

// DefaultPatterns returns the canonical table: every high-risk row, then every
// medium-risk row.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Expr: `indemnif\w*`, Category: domain.CategoryRed, Type: "Indemnification", Weight: 1},
		{Expr: `\bliquidated damages\b`, Category: domain.CategoryRed, Type: "Liquidated Damages", Weight: 1},
		{Expr: `\bpenalt(?:y|ies)\b`, Category: domain.CategoryRed, Type: "Penalty", Weight: 1},
		{Expr: `\bterminat\w*`, Category: domain.CategoryRed, Type: "Termination", Weight: 1},
		{Expr: `\bbreach\w*`, Category: domain.CategoryRed, Type: "Breach", Weight: 1},
		{Expr: `\bliabilit(?:y|ies)\b|\bliable\b`, Category: domain.CategoryRed, Type: "Liability", Weight: 1},
		{Expr: `\bgoverning law\b|\bjurisdiction\b`, Category: domain.CategoryRed, Type: "Governing Law", Weight: 1},
		{Expr: `\bconfidential\w*|\bnon-disclosure\b`, Category: domain.CategoryRed, Type: "Confidentiality", Weight: 1},
		{Expr: `\bdisputes?\b|\barbitration\b`, Category: domain.CategoryRed, Type: "Dispute Resolution", Weight: 1},

		{Expr: `\bpayments?\b|\binvoic\w*|\bfees?\b`, Category: domain.CategoryYellow, Type: "Payment Terms", Weight: 1},
		{Expr: `\bdeliver\w*`, Category: domain.CategoryYellow, Type: "Delivery", Weight: 1},
		{Expr: `\bwarrant\w*`, Category: domain.CategoryYellow, Type: "Warranty", Weight: 1},
		{Expr: `\bmaintenance\b`, Category: domain.CategoryYellow, Type: "Maintenance", Weight: 1},
		{Expr: `\brenew\w*`, Category: domain.CategoryYellow, Type: "Renewal", Weight: 1},
	}
}

type compiledPattern struct {
	Pattern
	re *regexp.Regexp
}

func compilePatterns(rows []Pattern) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(rows))
	for _, p := range rows {
		re, err := regexp.Compile(`(?i)` + p.Expr)
		if err != nil {
			return nil, err
		}
		if p.Weight <= 0 {
			p.Weight = 1
		}
		out = append(out, compiledPattern{Pattern: p, re: re})
	}
	return out, nil
}

// Package risk scores text segments for legal risk with an ordered pattern table.
//
// The score is a heuristic: within a category, longer clauses score slightly
// higher on the assumption that more detailed language binds more specifically.
// It is not a legal judgment.
package risk

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

// GeneralTermsType is the clause type assigned when no pattern matches.
const GeneralTermsType = "General Terms"

// bandGap keeps a clamped score strictly below the next band's base.
const bandGap = 0.001

// Band is the base/spread pair of one category.
type Band struct {
	Base   float64 `mapstructure:"base"`
	Spread float64 `mapstructure:"spread"`
}

// Bands holds the per-category constants of the score formula.
type Bands struct {
	Red    Band `mapstructure:"red"`
	Yellow Band `mapstructure:"yellow"`
	Green  Band `mapstructure:"green"`
}

// DefaultBands returns Red 0.8/0.2, Yellow 0.5/0.3, Green 0.2/0.3.
func DefaultBands() Bands {
	return Bands{
		Red:    Band{Base: 0.8, Spread: 0.2},
		Yellow: Band{Base: 0.5, Spread: 0.3},
		Green:  Band{Base: 0.2, Spread: 0.3},
	}
}

// Validate requires 0 <= green < yellow < red <= 1 and non-negative spreads.
func (b Bands) Validate() error {
	if b.Green.Base < 0 || b.Green.Base >= b.Yellow.Base || b.Yellow.Base >= b.Red.Base || b.Red.Base > 1 {
		return eris.Errorf("risk: band bases must satisfy 0 <= green < yellow < red <= 1, got %.3f/%.3f/%.3f",
			b.Green.Base, b.Yellow.Base, b.Red.Base)
	}
	if b.Red.Spread < 0 || b.Yellow.Spread < 0 || b.Green.Spread < 0 {
		return eris.New("risk: band spreads cannot be negative")
	}
	return nil
}

func (b Bands) band(c domain.RiskCategory) Band {
	switch c {
	case domain.CategoryRed:
		return b.Red
	case domain.CategoryYellow:
		return b.Yellow
	default:
		return b.Green
	}
}

// limits returns the closed score range owned by category c.
func (b Bands) limits(c domain.RiskCategory) (lo, hi float64) {
	switch c {
	case domain.CategoryRed:
		return b.Red.Base, 1
	case domain.CategoryYellow:
		return b.Yellow.Base, b.Red.Base - bandGap
	default:
		return 0, b.Yellow.Base - bandGap
	}
}

// Assessment is the scorer's verdict for one segment.
type Assessment struct {
	Score    float64
	Category domain.RiskCategory
	Type     string
	// Pattern is the expression that matched, empty for General Terms.
	Pattern string
}

// Explanation is a short human-readable reason for the verdict.
func (a Assessment) Explanation() string {
	if a.Pattern == "" {
		return "No high or medium risk language detected"
	}
	return fmt.Sprintf("Contains %s language", strings.ToLower(a.Type))
}

// Scorer is a pure, deterministic risk scorer. It is safe for concurrent use.
type Scorer struct {
	patterns []compiledPattern
	bands    Bands
}

// Option configures a Scorer.
type Option func(*config)

type config struct {
	patterns []Pattern
	bands    Bands
}

// WithBands overrides the score constants.
func WithBands(b Bands) Option {
	return func(c *config) { c.bands = b }
}

// WithPatterns replaces the pattern table.
func WithPatterns(p []Pattern) Option {
	return func(c *config) { c.patterns = p }
}

// NewScorer compiles the pattern table. Red rows are always evaluated before
// Yellow rows, each group keeping its table order; rows of any other category
// are ignored.
func NewScorer(opts ...Option) (*Scorer, error) {
	cfg := config{patterns: DefaultPatterns(), bands: DefaultBands()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.bands.Validate(); err != nil {
		return nil, err
	}

	ordered := make([]Pattern, 0, len(cfg.patterns))
	for _, cat := range []domain.RiskCategory{domain.CategoryRed, domain.CategoryYellow} {
		for _, p := range cfg.patterns {
			if p.Category == cat {
				ordered = append(ordered, p)
			}
		}
	}
	compiled, err := compilePatterns(ordered)
	if err != nil {
		return nil, eris.Wrap(err, "risk: compile pattern table")
	}
	return &Scorer{patterns: compiled, bands: cfg.bands}, nil
}

// MustNewScorer is NewScorer for static configuration; it panics on error.
func MustNewScorer(opts ...Option) *Scorer {
	s, err := NewScorer(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Score classifies text and computes base + (runes/1000)*spread*weight,
// clamped into the category's band.
func (s *Scorer) Score(text string) Assessment {
	a := Assessment{Category: domain.CategoryGreen, Type: GeneralTermsType}
	weight := 1.0
	for _, p := range s.patterns {
		if p.re.MatchString(text) {
			a.Category = p.Category
			a.Type = p.Type
			a.Pattern = p.Expr
			weight = p.Weight
			break
		}
	}

	band := s.bands.band(a.Category)
	raw := band.Base + float64(utf8.RuneCountInString(text))/1000*band.Spread*weight
	a.Score = s.clampInto(a.Category, raw)
	return a
}

// CategoryFor maps a score onto the band that owns it.
func (s *Scorer) CategoryFor(score float64) domain.RiskCategory {
	switch {
	case score >= s.bands.Red.Base:
		return domain.CategoryRed
	case score >= s.bands.Yellow.Base:
		return domain.CategoryYellow
	default:
		return domain.CategoryGreen
	}
}

// Bands returns the scorer's constants.
func (s *Scorer) Bands() Bands {
	return s.bands
}

func (s *Scorer) clampInto(c domain.RiskCategory, v float64) float64 {
	v = math.Round(clamp(v, 0, 1)*1000) / 1000
	lo, hi := s.bands.limits(c)
	return clamp(v, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

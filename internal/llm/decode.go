package llm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const clauseSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["score", "category", "type", "explanation", "summary", "entities", "legal_terms"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 1},
    "category": {"enum": ["Red", "Yellow", "Green"]},
    "type": {"type": "string", "minLength": 1},
    "explanation": {"type": "string", "minLength": 1},
    "summary": {"type": "string"},
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "type"],
        "properties": {"text": {"type": "string"}, "type": {"type": "string"}}
      }
    },
    "legal_terms": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["term", "definition"],
        "properties": {"term": {"type": "string"}, "definition": {"type": "string"}}
      }
    }
  }
}`

var clauseSchema = jsonschema.MustCompileString("clause.json", clauseSchemaJSON)

// DecodeClause turns raw model output into a complete ClauseAnalysis. The
// record is always usable; the error only explains which defaults were
// applied and is meant for logging.
func DecodeClause(raw string) (domain.ClauseAnalysis, error) {
	out := domain.DefaultClauseAnalysis()

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &doc); err != nil {
		return out, eris.Wrap(err, "clause response is not a JSON object")
	}
	validationErr := clauseSchema.Validate(doc)

	if score, ok := numberField(doc["score"]); ok {
		out.Score = clamp01(score)
	}
	if s, ok := doc["category"].(string); ok {
		if c := domain.RiskCategory(strings.TrimSpace(s)); c.Valid() {
			out.Category = c
		}
	}
	if s, ok := nonEmptyString(doc["type"]); ok {
		out.Type = s
	}
	if s, ok := nonEmptyString(doc["explanation"]); ok {
		out.Explanation = s
	}
	if s, ok := doc["summary"].(string); ok {
		out.Summary = strings.TrimSpace(s)
	}
	if items, ok := doc["entities"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			text, okText := nonEmptyString(m["text"])
			typ, okType := nonEmptyString(m["type"])
			if okText && okType {
				out.Entities = append(out.Entities, domain.Entity{Text: text, Type: typ})
			}
		}
	}
	if items, ok := doc["legal_terms"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			term, okTerm := nonEmptyString(m["term"])
			def, _ := m["definition"].(string)
			if okTerm {
				out.LegalTerms = append(out.LegalTerms, domain.LegalTerm{Term: term, Definition: strings.TrimSpace(def)})
			}
		}
	}

	if validationErr != nil {
		return out, eris.Wrap(validationErr, "clause response failed schema validation")
	}
	return out, nil
}

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func numberField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

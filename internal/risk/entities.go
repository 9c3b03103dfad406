package risk

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"legal-doc-analyzer/internal/domain"
)

const months = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b` + months + `\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+` + months + `,?\s+\d{4}\b`),
	}
	moneyPattern = regexp.MustCompile(`(?i)\$\d+(?:,\d{3})*(?:\.\d{2})?|\b\d+(?:,\d{3})*\s?(?:USD|INR|EUR|GBP|dollars|rupees|pounds|euros)\b`)
	partyPattern = regexp.MustCompile(`\b(?:Mr\.|Mrs\.|Ms\.|Dr\.)\s?[A-Z][a-zA-Z]*|\b[A-Z][a-zA-Z]*\s(?:Company|Corporation|LLC|Ltd|Inc)\b\.?|\bParty\s+[A-Z]\b`)
)

// ExtractEntities finds parties, dates and money amounts with regular
// expressions. Each type is deduplicated and sorted; types appear in the order
// Party, Date, Money.
func ExtractEntities(text string) []domain.Entity {
	var dates []string
	for _, re := range datePatterns {
		dates = append(dates, re.FindAllString(text, -1)...)
	}

	out := make([]domain.Entity, 0)
	out = appendEntities(out, "Party", partyPattern.FindAllString(text, -1))
	out = appendEntities(out, "Date", dates)
	out = appendEntities(out, "Money", moneyPattern.FindAllString(text, -1))
	return out
}

func appendEntities(out []domain.Entity, typ string, found []string) []domain.Entity {
	seen := make(map[string]struct{}, len(found))
	uniq := make([]string, 0, len(found))
	for _, f := range found {
		f = strings.TrimSpace(f)
		if _, ok := seen[f]; ok || f == "" {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}
	sort.Strings(uniq)
	for _, u := range uniq {
		out = append(out, domain.Entity{Text: u, Type: typ})
	}
	return out
}

// FirstSentence returns the first sentence of text, cut to at most max runes.
func FirstSentence(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:max-1])) + "…"
}

package retrieval

import (
	"math"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\b[a-z]{2,}\b`)

// Tokenize lowercases text and returns its alphabetic words of two or more
// ASCII letters.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// TermFrequency returns count(t)/len(tokens) for every token.
func TermFrequency(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	if len(tokens) == 0 {
		return tf
	}
	for _, t := range tokens {
		tf[t]++
	}
	total := float64(len(tokens))
	for t, c := range tf {
		tf[t] = c / total
	}
	return tf
}

// InverseDocumentFrequency computes ln((N+1)/(df+1)) + 1 over the given
// tokenised documents.
func InverseDocumentFrequency(docs [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log((n+1)/(float64(d)+1)) + 1
	}
	return idf
}

// ScoreTokens sums tf*idf over the query tokens. Tokens missing from idf use
// a weight of 1.0. Repeated query tokens count once per occurrence.
func ScoreTokens(query []string, tf map[string]float64, idf map[string]float64) float64 {
	var score float64
	for _, q := range query {
		w, ok := idf[q]
		if !ok {
			w = 1.0
		}
		score += tf[q] * w
	}
	return score
}

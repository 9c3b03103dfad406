package risk

import (
	"testing"

	"legal-doc-analyzer/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestExtractEntities(t *testing.T) {
	text := "Acme Corporation shall pay Mr. Smith $10,000 by March 15, 2025 and again by 01/06/2026. " +
		"A further 500 USD is owed to Party B by 15 March 2025. Acme Corporation confirms."

	got := ExtractEntities(text)

	assert.Equal(t, []domain.Entity{
		{Text: "Acme Corporation", Type: "Party"},
		{Text: "Mr. Smith", Type: "Party"},
		{Text: "Party B", Type: "Party"},
		{Text: "01/06/2026", Type: "Date"},
		{Text: "15 March 2025", Type: "Date"},
		{Text: "March 15, 2025", Type: "Date"},
		{Text: "$10,000", Type: "Money"},
		{Text: "500 USD", Type: "Money"},
	}, got)
}

func TestExtractEntities_None(t *testing.T) {
	got := ExtractEntities("nothing to see here")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "First part.", FirstSentence("First part. Second part.", 150))
	assert.Equal(t, "no terminator here", FirstSentence("no   terminator\nhere", 150))
	assert.Equal(t, "abcd…", FirstSentence("abcdefghij", 5))
}

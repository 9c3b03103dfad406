package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "supplier", "shall", "pay", "eur"},
		Tokenize("The Supplier shall pay 100 EUR; a b."))
	assert.Empty(t, Tokenize("1 2 3 ! a"))
}

func TestTermFrequency(t *testing.T) {
	tf := TermFrequency([]string{"pay", "pay", "fee", "late"})
	assert.InDelta(t, 0.5, tf["pay"], 1e-9)
	assert.InDelta(t, 0.25, tf["fee"], 1e-9)
	assert.Empty(t, TermFrequency(nil))
}

func TestInverseDocumentFrequency(t *testing.T) {
	idf := InverseDocumentFrequency([][]string{
		{"pay", "fee"},
		{"pay", "pay"},
	})
	// pay appears in both documents, fee in one.
	assert.InDelta(t, 1.0, idf["pay"], 1e-9)
	assert.Greater(t, idf["fee"], idf["pay"])
}

func TestRetrieve_RanksMatchingNoteFirst(t *testing.T) {
	corpus := []Document{
		{ID: "n1", Title: "Lunch", Text: "We ordered pizza and salad for the team lunch."},
		{ID: "n2", Title: "Lease", Text: "The tenant must pay rent on the first day of each month. Late rent incurs a fee."},
		{ID: "n3", Title: "Trip", Text: "The flight departs at noon and returns on Sunday."},
	}

	got := NewRetriever(nil).Retrieve("when is rent due?", corpus, DefaultMaxContextChars, DefaultTopK)

	require.Len(t, got, 1)
	assert.Equal(t, "n2", got[0].SourceID)
	assert.Equal(t, "Lease", got[0].SourceTitle)
	assert.Equal(t, corpus[1].Text, got[0].Text)
}

func TestRetrieve_NoOverlapReturnsEmpty(t *testing.T) {
	note := strings.Repeat("Quarterly marketing plans focus on brand awareness campaigns. ", 65)
	require.Greater(t, len(note), 4000)

	got := NewRetriever(nil).Retrieve("zebra xylophone", []Document{{ID: "n", Title: "Plan", Text: note}},
		DefaultMaxContextChars, DefaultTopK)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_EmptyInputs(t *testing.T) {
	r := NewRetriever(nil)
	corpus := []Document{{ID: "n", Title: "T", Text: "rent is due monthly"}}

	assert.Empty(t, r.Retrieve("", corpus, DefaultMaxContextChars, DefaultTopK))
	assert.Empty(t, r.Retrieve("? 1 2", corpus, DefaultMaxContextChars, DefaultTopK))
	assert.Empty(t, r.Retrieve("rent", nil, DefaultMaxContextChars, DefaultTopK))
	assert.Empty(t, r.Retrieve("rent", []Document{{ID: "x", Text: "   "}}, DefaultMaxContextChars, DefaultTopK))
}

func TestRetrieve_RespectsBudgetAndTopK(t *testing.T) {
	var corpus []Document
	for i := 0; i < 6; i++ {
		corpus = append(corpus, Document{
			ID:    string(rune('a' + i)),
			Title: "Note",
			Text:  strings.Repeat("The contract payment terms require invoices within thirty days. ", 60),
		})
	}
	r := NewRetriever(nil)

	got := r.Retrieve("payment terms", corpus, 5000, DefaultTopK)
	total := 0
	for _, c := range got {
		total += utf8.RuneCountInString(c.Text)
	}
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, total, 5000)

	got = r.Retrieve("payment terms", corpus, 1_000_000, 3)
	assert.Len(t, got, 3)
}

func TestRetrieve_BudgetSmallerThanAnyChunk(t *testing.T) {
	corpus := []Document{{ID: "n", Title: "T", Text: "rent is due monthly"}}
	got := NewRetriever(nil).Retrieve("rent", corpus, 5, DefaultTopK)
	assert.Empty(t, got)
}

func TestRetrieve_Deterministic(t *testing.T) {
	corpus := []Document{
		{ID: "1", Title: "A", Text: strings.Repeat("Termination requires written notice. Payment is due monthly. ", 40)},
		{ID: "2", Title: "B", Text: strings.Repeat("Notice of termination must be sent by mail. ", 50)},
	}
	r := NewRetriever(NewChunker(WithChunkSize(300), WithOverlap(50)))

	first := r.Retrieve("termination notice", corpus, DefaultMaxContextChars, DefaultTopK)
	second := r.Retrieve("termination notice", corpus, DefaultMaxContextChars, DefaultTopK)
	assert.Equal(t, first, second)
}

func TestRetrieve_TiesKeepCorpusOrder(t *testing.T) {
	corpus := []Document{
		{ID: "first", Title: "A", Text: "deposit refund"},
		{ID: "second", Title: "B", Text: "deposit refund"},
	}
	got := NewRetriever(nil).Retrieve("deposit", corpus, DefaultMaxContextChars, DefaultTopK)

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].SourceID)
	assert.Equal(t, "second", got[1].SourceID)
}

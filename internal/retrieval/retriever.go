package retrieval

import (
	"sort"
	"unicode/utf8"

	"legal-doc-analyzer/internal/domain"
)

// Defaults for a notebook question.
const (
	DefaultMaxContextChars = 8000
	DefaultTopK            = 10
)

// Document is one retrievable source text.
type Document struct {
	ID    string
	Title string
	Text  string
}

// Retriever ranks chunks of a corpus against a query. It keeps no state
// between calls.
type Retriever struct {
	chunker *Chunker
}

// NewRetriever creates a retriever that chunks with c. A nil chunker uses the
// defaults.
func NewRetriever(c *Chunker) *Retriever {
	if c == nil {
		c = NewChunker()
	}
	return &Retriever{chunker: c}
}

type scoredChunk struct {
	chunk domain.Chunk
	score float64
}

// Retrieve returns the best chunks for query, highest score first. Chunks with
// no query overlap are never returned, the summed chunk length never exceeds
// maxContextChars, and at most topK chunks are returned. Equal scores keep
// corpus order. An empty corpus or a query without tokens yields an empty
// slice.
func (r *Retriever) Retrieve(query string, corpus []Document, maxContextChars, topK int) []domain.Chunk {
	selected := make([]domain.Chunk, 0)

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return selected
	}

	var chunks []domain.Chunk
	for _, doc := range corpus {
		for _, span := range r.chunker.Split(doc.Text) {
			chunks = append(chunks, domain.Chunk{
				SourceID:    doc.ID,
				SourceTitle: doc.Title,
				Index:       span.Index,
				Start:       span.Start,
				End:         span.End,
				Text:        span.Text,
			})
		}
	}
	if len(chunks) == 0 {
		return selected
	}

	tokens := make([][]string, len(chunks))
	for i, c := range chunks {
		tokens[i] = Tokenize(c.Text)
	}
	idf := InverseDocumentFrequency(tokens)

	scored := make([]scoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = scoredChunk{chunk: c, score: ScoreTokens(queryTokens, TermFrequency(tokens[i]), idf)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	total := 0
	for _, sc := range scored {
		if len(selected) >= topK || sc.score <= 0 {
			break
		}
		size := utf8.RuneCountInString(sc.chunk.Text)
		if total+size > maxContextChars {
			break
		}
		selected = append(selected, sc.chunk)
		total += size
	}
	return selected
}

package service

import (
	"context"
	"strings"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/retrieval"
)

// Fixed answers returned without a model call, or when the call fails.
const (
	AnswerNotConfigured = "AI service is not configured. Please set GROQ_API_KEY."
	AnswerNoNotes       = "This notebook has no notes yet. Add some notes first, then ask questions about them."
	AnswerNoContent     = "I couldn't find relevant content in your notes to answer this question. Try rephrasing or adding more notes."
	AnswerFailed        = "Sorry, I couldn't generate an answer right now. Please try again."
)

// QAConfig sizes the context handed to the model.
type QAConfig struct {
	DocumentContextChars int
	NotebookContextChars int
	TopK                 int
}

// DefaultQAConfig returns the production defaults.
func DefaultQAConfig() QAConfig {
	return QAConfig{
		DocumentContextChars: 8000,
		NotebookContextChars: retrieval.DefaultMaxContextChars,
		TopK:                 retrieval.DefaultTopK,
	}
}

// QAEngine answers questions against one document or a notebook of notes.
type QAEngine struct {
	invoker   domain.ModelInvoker
	retriever *retrieval.Retriever
	cfg       QAConfig
	logger    domain.Logger
}

func NewQAEngine(invoker domain.ModelInvoker, retriever *retrieval.Retriever, cfg QAConfig, logger domain.Logger) *QAEngine {
	def := DefaultQAConfig()
	if cfg.DocumentContextChars <= 0 {
		cfg.DocumentContextChars = def.DocumentContextChars
	}
	if cfg.NotebookContextChars <= 0 {
		cfg.NotebookContextChars = def.NotebookContextChars
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if retriever == nil {
		retriever = retrieval.NewRetriever(nil)
	}
	return &QAEngine{invoker: invoker, retriever: retriever, cfg: cfg, logger: logger}
}

func (e *QAEngine) enabled() bool {
	return e.invoker != nil && e.invoker.Enabled()
}

// AskDocument answers from the first DocumentContextChars characters of a
// document's text. There is no retrieval step.
func (e *QAEngine) AskDocument(ctx context.Context, fullText, query string) domain.Answer {
	if !e.enabled() {
		return notice(AnswerNotConfigured)
	}

	context := truncateRunes(fullText, e.cfg.DocumentContextChars)
	comp, err := e.invoker.Invoke(ctx, documentQuestionPrompt(context, query))
	if err != nil {
		e.logger.Warn("Document question failed", "error", err)
		return notice(AnswerFailed)
	}
	return domain.Answer{Answer: strings.TrimSpace(comp.Text), Sources: []domain.Source{}, HasAI: true}
}

// AskNotebook retrieves the chunks of notes most relevant to query and
// answers from them. When nothing relevant is found the model is not called.
func (e *QAEngine) AskNotebook(ctx context.Context, notes []*domain.Note, query string) domain.Answer {
	if len(notes) == 0 {
		return notice(AnswerNoNotes)
	}
	if !e.enabled() {
		return notice(AnswerNotConfigured)
	}

	corpus := make([]retrieval.Document, 0, len(notes))
	for _, n := range notes {
		corpus = append(corpus, retrieval.Document{ID: n.ID, Title: n.Title, Text: n.Content})
	}
	chunks := e.retriever.Retrieve(query, corpus, e.cfg.NotebookContextChars, e.cfg.TopK)
	if len(chunks) == 0 {
		e.logger.Debug("No relevant note content", "notes", len(notes))
		return domain.Answer{Answer: AnswerNoContent, Sources: []domain.Source{}, HasAI: true}
	}

	context, sources := buildNotebookContext(chunks)
	comp, err := e.invoker.Invoke(ctx, notebookQuestionPrompt(context, query))
	if err != nil {
		e.logger.Warn("Notebook question failed", "error", err, "chunks", len(chunks))
		return domain.Answer{Answer: AnswerFailed, Sources: sources, HasAI: false}
	}
	return domain.Answer{Answer: strings.TrimSpace(comp.Text), Sources: sources, HasAI: true}
}

// buildNotebookContext labels each chunk with its note title and lists the
// contributing notes once, in first-seen order.
func buildNotebookContext(chunks []domain.Chunk) (string, []domain.Source) {
	parts := make([]string, 0, len(chunks))
	sources := make([]domain.Source, 0)
	seen := make(map[string]struct{})

	for _, c := range chunks {
		parts = append(parts, "[From: "+c.SourceTitle+"]\n"+c.Text)
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		sources = append(sources, domain.Source{ID: c.SourceID, Title: c.SourceTitle})
	}
	return strings.Join(parts, "\n\n---\n\n"), sources
}

func notice(msg string) domain.Answer {
	return domain.Answer{Answer: msg, Sources: []domain.Source{}, HasAI: false}
}

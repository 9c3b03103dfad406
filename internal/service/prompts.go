package service

import (
	"fmt"
	"strings"

	"legal-doc-analyzer/internal/domain"
)

func clausePrompt(text string) []domain.Message {
	return []domain.Message{
		{
			Role:    domain.RoleSystem,
			Content: "You are a contract review assistant. Reply with a single JSON object and nothing else.",
		},
		domain.UserMessage(fmt.Sprintf(`Analyze this legal clause.
Clause: %q

Return JSON with:
- score: 0.0-1.0 (risk level)
- category: "Red", "Yellow" or "Green"
- type: e.g. "Liability", "Termination"
- explanation: max 15 words
- summary: 1-line summary
- entities: list of objects { "text": "entity_name", "type": "Party/Date/Money" }
- legal_terms: list of objects { "term": "term", "definition": "short definition" }`, text)),
	}
}

func summaryPrompt(text string) []domain.Message {
	return []domain.Message{
		domain.UserMessage("Summarize this legal document in 3 bullet points highlighting key obligations.\n\nText: " + text),
	}
}

func documentQuestionPrompt(context, query string) []domain.Message {
	var sb strings.Builder
	sb.WriteString("Document context:\n---------------------\n")
	sb.WriteString(context)
	sb.WriteString("\n---------------------\n")
	sb.WriteString("RULES: Answer the question using ONLY the document context above. ")
	sb.WriteString("If the answer is not in the context, say that the document does not contain it. ")
	sb.WriteString("Do not use outside knowledge.\n")
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return []domain.Message{
		{Role: domain.RoleSystem, Content: "You are a helpful legal assistant answering questions about a single document."},
		domain.UserMessage(sb.String()),
	}
}

func notebookQuestionPrompt(context, query string) []domain.Message {
	var sb strings.Builder
	sb.WriteString("Context from your notes:\n\n")
	sb.WriteString(context)
	sb.WriteString("\n\n---\n")
	sb.WriteString("RULES: Answer the question using ONLY the notes above and mention which note the answer comes from. ")
	sb.WriteString("If the notes do not contain the answer, say so plainly.\n")
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return []domain.Message{
		{Role: domain.RoleSystem, Content: "You are a research assistant that answers strictly from the user's notes."},
		domain.UserMessage(sb.String()),
	}
}

// Package llm talks to the hosted language models used for clause analysis,
// summaries and question answering. Provider clients sit behind Client; the
// Invoker adds rate limiting, per-model retries and the fallback chain.
package llm

import (
	"context"
	"strings"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

// Provider names accepted in target specs.
const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderVertex    = "vertex"
)

// DefaultGroqModels is the default fallback chain, fastest first.
var DefaultGroqModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"mixtral-8x7b-32768",
}

// Request is one provider-neutral completion request.
type Request struct {
	Messages    []domain.Message
	JSON        bool
	MaxTokens   int
	Temperature float64
}

// Response is the text a provider returned plus token usage when known.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client sends one completion request to one provider.
type Client interface {
	Complete(ctx context.Context, model string, req Request) (*Response, error)
}

// Target is one entry of the fallback chain.
type Target struct {
	Provider string
	Model    string
	Client   Client
}

// Name renders the target as provider:model.
func (t Target) Name() string {
	return t.Provider + ":" + t.Model
}

// ParseTarget splits a "provider:model" spec. A bare model name is treated
// as a Groq model.
func ParseTarget(spec string) (provider, model string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", eris.New("empty model target")
	}
	provider, model, found := strings.Cut(spec, ":")
	if !found {
		return ProviderGroq, spec, nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if model == "" {
		return "", "", eris.Errorf("model target %q has no model", spec)
	}
	switch provider {
	case ProviderGroq, ProviderAnthropic, ProviderVertex:
		return provider, model, nil
	default:
		return "", "", eris.Errorf("model target %q has unknown provider %q", spec, provider)
	}
}

// splitSystem separates system messages from the conversation turns.
func splitSystem(msgs []domain.Message) (string, []domain.Message) {
	var system []string
	turns := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

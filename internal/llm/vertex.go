package llm

import (
	"context"
	"strings"

	"legal-doc-analyzer/internal/domain"

	"cloud.google.com/go/vertexai/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// VertexConfig configures the Gemini client.
type VertexConfig struct {
	ProjectID string
	Location  string
	// CredentialsFile is an optional service account key; ADC is used when empty.
	CredentialsFile string
}

// VertexClient calls Gemini models on Vertex AI.
type VertexClient struct {
	client *genai.Client
}

var _ Client = (*VertexClient)(nil)

// NewVertexClient connects to Vertex AI for the given project.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" {
		return nil, eris.New("vertex: project id is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "vertex: create client")
	}
	return &VertexClient{client: client}, nil
}

// Complete replays all but the last turn as chat history and sends the last
// one.
func (c *VertexClient) Complete(ctx context.Context, model string, req Request) (*Response, error) {
	system, turns := splitSystem(req.Messages)
	if len(turns) == 0 {
		return nil, eris.New("vertex: no user message")
	}

	gm := c.client.GenerativeModel(model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.JSON {
		gm.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		gm.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	chat := gm.StartChat()
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return nil, eris.Wrap(err, "vertex: send message")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, eris.New("vertex: no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	out := &Response{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (c *VertexClient) Close() error {
	return c.client.Close()
}

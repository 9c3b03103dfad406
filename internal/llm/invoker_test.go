package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Complete(ctx context.Context, model string, req Request) (*Response, error) {
	args := m.Called(ctx, model, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*Response), args.Error(1)
	}
	return nil, args.Error(1)
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func groqTargets(client Client) []Target {
	targets := make([]Target, len(DefaultGroqModels))
	for i, m := range DefaultGroqModels {
		targets[i] = Target{Provider: ProviderGroq, Model: m, Client: client}
	}
	return targets
}

func TestInvoker_FallsBackToThirdModel(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, "llama-3.3-70b-versatile", mock.Anything).Return(nil, errors.New("rate limited"))
	client.On("Complete", mock.Anything, "llama-3.1-8b-instant", mock.Anything).Return(nil, errors.New("overloaded"))
	client.On("Complete", mock.Anything, "mixtral-8x7b-32768", mock.Anything).Return(&Response{Text: "third answer"}, nil)

	rec := &sleepRecorder{}
	inv := NewInvoker(groqTargets(client), WithRetry(3, 100*time.Millisecond), WithSleep(rec.sleep))

	got, err := inv.Invoke(context.Background(), []domain.Message{domain.UserMessage("hi")})

	require.NoError(t, err)
	assert.Equal(t, "third answer", got.Text)
	assert.Equal(t, "mixtral-8x7b-32768", got.Model)
	assert.Equal(t, ProviderGroq, got.Provider)
	assert.Equal(t, 7, got.Attempts)
	// Two failing models, each sleeping between its three attempts only.
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond,
		100 * time.Millisecond, 200 * time.Millisecond,
	}, rec.delays)
	client.AssertNumberOfCalls(t, "Complete", 7)
}

func TestInvoker_ExhaustedReturnsSingleError(t *testing.T) {
	client := new(MockClient)
	last := errors.New("mixtral unavailable")
	client.On("Complete", mock.Anything, "llama-3.3-70b-versatile", mock.Anything).Return(nil, errors.New("first"))
	client.On("Complete", mock.Anything, "llama-3.1-8b-instant", mock.Anything).Return(nil, errors.New("second"))
	client.On("Complete", mock.Anything, "mixtral-8x7b-32768", mock.Anything).Return(nil, last)

	inv := NewInvoker(groqTargets(client), WithSleep((&sleepRecorder{}).sleep))

	_, err := inv.Invoke(context.Background(), []domain.Message{domain.UserMessage("hi")})

	require.Error(t, err)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 9, exhausted.Attempts)
	assert.Len(t, exhausted.Targets, 3)
	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "mixtral unavailable")
	assert.NotContains(t, err.Error(), "first")
}

func TestInvoker_NoTargets(t *testing.T) {
	inv := NewInvoker(nil)
	assert.False(t, inv.Enabled())

	_, err := inv.Invoke(context.Background(), []domain.Message{domain.UserMessage("hi")})
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestInvoker_EmptyResponseIsRetried(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, "m", mock.Anything).Return(&Response{Text: "  "}, nil).Once()
	client.On("Complete", mock.Anything, "m", mock.Anything).Return(&Response{Text: "ok"}, nil).Once()

	inv := NewInvoker([]Target{{Provider: ProviderGroq, Model: "m", Client: client}}, WithSleep((&sleepRecorder{}).sleep))

	got, err := inv.Invoke(context.Background(), []domain.Message{domain.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Text)
	assert.Equal(t, 2, got.Attempts)
}

func TestInvoker_CallTimeoutApplied(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, "m", mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
		}).
		Return(&Response{Text: "ok"}, nil)

	inv := NewInvoker([]Target{{Provider: ProviderGroq, Model: "m", Client: client}}, WithCallTimeout(5*time.Second))

	_, err := inv.Invoke(context.Background(), []domain.Message{domain.UserMessage("hi")})
	require.NoError(t, err)
}

func TestInvoker_CancelledContextStopsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := new(MockClient)
	client.On("Complete", mock.Anything, "llama-3.3-70b-versatile", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	inv := NewInvoker(groqTargets(client), WithSleep((&sleepRecorder{}).sleep))

	_, err := inv.Invoke(ctx, []domain.Message{domain.UserMessage("hi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestInvoker_InvokeClauseRequestsJSON(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, "m", mock.MatchedBy(func(req Request) bool { return req.JSON })).
		Return(&Response{Text: "{}"}, nil)

	inv := NewInvoker([]Target{{Provider: ProviderGroq, Model: "m", Client: client}})

	got, err := inv.InvokeClause(context.Background(), []domain.Message{domain.UserMessage("analyze")})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultClauseAnalysis(), got)
}

func TestInvoker_InvokeClauseExhausted(t *testing.T) {
	client := new(MockClient)
	client.On("Complete", mock.Anything, "m", mock.Anything).Return(nil, errors.New("down"))

	inv := NewInvoker([]Target{{Provider: ProviderGroq, Model: "m", Client: client}}, WithSleep((&sleepRecorder{}).sleep))

	_, err := inv.InvokeClause(context.Background(), []domain.Message{domain.UserMessage("analyze")})
	var exhausted *ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		spec     string
		provider string
		model    string
		wantErr  bool
	}{
		{"groq:llama-3.1-8b-instant", ProviderGroq, "llama-3.1-8b-instant", false},
		{"anthropic:claude-3-5-haiku-latest", ProviderAnthropic, "claude-3-5-haiku-latest", false},
		{" Vertex : gemini-2.0-flash-001 ", ProviderVertex, "gemini-2.0-flash-001", false},
		{"mixtral-8x7b-32768", ProviderGroq, "mixtral-8x7b-32768", false},
		{"", "", "", true},
		{"openai:gpt-4o", "", "", true},
		{"groq:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			provider, model, err := ParseTarget(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.model, model)
		})
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/resilience"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Invoker defaults.
const (
	DefaultAttemptsPerModel = 3
	DefaultInitialBackoff   = time.Second
	DefaultCallTimeout      = 30 * time.Second
	DefaultMaxTokens        = 1024
)

// ErrNoTargets is returned when the invoker has no model configured.
var ErrNoTargets = eris.New("no AI model configured")

// ExhaustedError reports that every attempt on every target failed. It
// unwraps to the last underlying failure.
type ExhaustedError struct {
	Attempts int
	Targets  []string
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts across %d models failed (%s): %v",
		e.Attempts, len(e.Targets), strings.Join(e.Targets, ", "), e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Invoker runs one logical model call over an ordered fallback chain. Each
// target gets its own retry budget; the first success wins.
type Invoker struct {
	targets     []Target
	retry       resilience.RetryConfig
	callTimeout time.Duration
	limiter     *rate.Limiter
	maxTokens   int
	temperature float64
	logger      domain.Logger
}

var _ domain.ModelInvoker = (*Invoker)(nil)

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRetry sets attempts per target and the base backoff. Backoff doubles
// after each failed attempt of the same target.
func WithRetry(attempts int, initialBackoff time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if attempts > 0 {
			inv.retry.MaxAttempts = attempts
		}
		if initialBackoff > 0 {
			inv.retry.InitialBackoff = initialBackoff
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) InvokerOption {
	return func(inv *Invoker) { inv.retry.Sleep = sleep }
}

// WithCallTimeout bounds every single provider call.
func WithCallTimeout(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.callTimeout = d
		}
	}
}

// WithRateLimit shares a token bucket across all calls. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) InvokerOption {
	return func(inv *Invoker) {
		if rps <= 0 {
			inv.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		inv.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithGeneration sets max output tokens and temperature for every request.
func WithGeneration(maxTokens int, temperature float64) InvokerOption {
	return func(inv *Invoker) {
		if maxTokens > 0 {
			inv.maxTokens = maxTokens
		}
		if temperature >= 0 {
			inv.temperature = temperature
		}
	}
}

// WithLogger attaches a logger for retries and fallbacks.
func WithLogger(l domain.Logger) InvokerOption {
	return func(inv *Invoker) { inv.logger = l }
}

// NewInvoker creates an invoker over targets in priority order.
func NewInvoker(targets []Target, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		targets: targets,
		retry: resilience.RetryConfig{
			MaxAttempts:    DefaultAttemptsPerModel,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     time.Minute,
			Multiplier:     2,
		},
		callTimeout: DefaultCallTimeout,
		maxTokens:   DefaultMaxTokens,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Enabled reports whether any target is configured.
func (inv *Invoker) Enabled() bool {
	return len(inv.targets) > 0
}

// Targets returns the configured chain as provider:model names.
func (inv *Invoker) Targets() []string {
	names := make([]string, len(inv.targets))
	for i, t := range inv.targets {
		names[i] = t.Name()
	}
	return names
}

// Invoke returns the first successful free-text completion.
func (inv *Invoker) Invoke(ctx context.Context, messages []domain.Message) (*domain.Completion, error) {
	return inv.invoke(ctx, Request{Messages: messages})
}

// InvokeClause asks for a JSON clause analysis. Once a model answers, the
// result is always a complete record: malformed output falls back to
// defaults field by field.
func (inv *Invoker) InvokeClause(ctx context.Context, messages []domain.Message) (domain.ClauseAnalysis, error) {
	completion, err := inv.invoke(ctx, Request{Messages: messages, JSON: true})
	if err != nil {
		return domain.ClauseAnalysis{}, err
	}
	analysis, decodeErr := DecodeClause(completion.Text)
	if decodeErr != nil {
		inv.debug("Clause response defaulted", "model", completion.Model, "reason", decodeErr.Error())
	}
	return analysis, nil
}

func (inv *Invoker) invoke(ctx context.Context, req Request) (*domain.Completion, error) {
	if len(inv.targets) == 0 {
		return nil, ErrNoTargets
	}
	req.MaxTokens = inv.maxTokens
	req.Temperature = inv.temperature

	attempts := 0
	var lastErr error
	for i, target := range inv.targets {
		cfg := inv.retry
		cfg.OnRetry = func(attempt int, err error) {
			inv.warn("Retrying model call", "target", target.Name(), "attempt", attempt, "error", err.Error())
		}

		resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
			attempts++
			return inv.call(ctx, target, req)
		})
		if err == nil {
			return &domain.Completion{
				Text:         resp.Text,
				Provider:     target.Provider,
				Model:        target.Model,
				Attempts:     attempts,
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if i < len(inv.targets)-1 {
			inv.warn("Model exhausted, falling back", "target", target.Name(), "next", inv.targets[i+1].Name())
		}
	}

	return nil, &ExhaustedError{Attempts: attempts, Targets: inv.Targets(), Last: lastErr}
}

// call performs one rate-limited attempt under its own timeout.
func (inv *Invoker) call(ctx context.Context, target Target, req Request) (*Response, error) {
	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.callTimeout)
	defer cancel()

	resp, err := target.Client.Complete(callCtx, target.Model, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, eris.Errorf("%s returned an empty response", target.Name())
	}
	return resp, nil
}

func (inv *Invoker) warn(msg string, fields ...interface{}) {
	if inv.logger != nil {
		inv.logger.Warn(msg, fields...)
	}
}

func (inv *Invoker) debug(msg string, fields ...interface{}) {
	if inv.logger != nil {
		inv.logger.Debug(msg, fields...)
	}
}

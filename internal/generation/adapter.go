package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/arifi/internal/api"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// Defaults used when an option is not supplied.
const (
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = time.Second
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.2
)

// Adapter implements Generator on top of a remote provider. Transient
// provider failures are retried with a linearly increasing delay; anything
// else fails the call immediately.
type Adapter struct {
	provider    api.Provider
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
	onRetry     func(err error, delay time.Duration)
	logger      *zap.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithRetries sets the retry budget and base delay.
func WithRetries(maxRetries int, delay time.Duration) AdapterOption {
	return func(a *Adapter) {
		if maxRetries >= 0 {
			a.maxRetries = maxRetries
		}
		if delay >= 0 {
			a.retryDelay = delay
		}
	}
}

// WithCallTimeout bounds each remote attempt.
func WithCallTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxTokens caps the response size.
func WithMaxTokens(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature for Generate. Repair
// always uses 0.
func WithTemperature(t float64) AdapterOption {
	return func(a *Adapter) {
		a.temperature = t
	}
}

// WithRateLimit paces remote calls to perSecond requests. Zero disables
// pacing.
func WithRateLimit(perSecond float64) AdapterOption {
	return func(a *Adapter) {
		if perSecond > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithRetryObserver registers a callback invoked before each retry wait.
func WithRetryObserver(fn func(err error, delay time.Duration)) AdapterOption {
	return func(a *Adapter) {
		a.onRetry = fn
	}
}

// WithAdapterLogger sets the logger.
func WithAdapterLogger(l *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an adapter for provider.
func NewAdapter(provider api.Provider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		provider:    provider,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		timeout:     DefaultTimeout,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("generation").With(
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
	)
	return a
}

// Info implements Generator.
func (a *Adapter) Info() models.ProviderInfo {
	return models.ProviderInfo{Name: a.provider.Name(), Model: a.provider.Model()}
}

// Generate implements Generator.
func (a *Adapter) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	return a.complete(ctx, "generate", api.CompletionRequest{
		System:      generateSystemPrompt,
		User:        generateUserPrompt(req),
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
}

// Repair implements Generator.
func (a *Adapter) Repair(ctx context.Context, code string, report models.AnalysisReport, lang models.Language) models.GenerationResult {
	user, err := repairUserPrompt(code, report, lang)
	if err != nil {
		return models.GenerationResult{Provider: a.Info(), Error: err.Error()}
	}
	return a.complete(ctx, "repair", api.CompletionRequest{
		System:    repairSystemPrompt,
		User:      user,
		MaxTokens: a.maxTokens,
	})
}

// complete runs req through the retry policy and extracts the code.
func (a *Adapter) complete(ctx context.Context, op string, req api.CompletionRequest) models.GenerationResult {
	result := models.GenerationResult{Provider: a.Info()}

	var raw string
	attempt := func() error {
		result.Attempts++

		if err := a.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		text, err := a.provider.Complete(callCtx, req)
		if err == nil {
			raw = text
			return nil
		}

		switch {
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded) && !api.IsTransient(err):
			return &api.TransientError{Err: fmt.Errorf("attempt exceeded %s: %w", a.timeout, err)}
		case api.IsTransient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&LinearBackOff{Base: a.retryDelay}, uint64(a.maxRetries)),
		ctx,
	)

	notify := func(err error, delay time.Duration) {
		a.logger.Warn("transient provider failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", result.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if a.onRetry != nil {
			a.onRetry(err, delay)
		}
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		a.logger.Error("provider call failed",
			zap.String("op", op),
			zap.Int("attempts", result.Attempts),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.RawResponse = raw
	result.Code, result.Fenced = ExtractCode(raw)
	if !result.Fenced {
		a.logger.Debug("response had no fenced block, using full text", zap.String("op", op))
	}

	if tr, ok := a.provider.(api.TokenReporter); ok {
		in, out := tr.Tracker().Total()
		a.logger.Debug("token usage",
			zap.String("op", op),
			zap.Int64("input_tokens", in),
			zap.Int64("output_tokens", out),
			zap.Int("calls", tr.Tracker().Calls()),
		)
	}

	return result
}

var _ Generator = (*Adapter)(nil)

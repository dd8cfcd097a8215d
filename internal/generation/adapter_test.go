package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/arifi/internal/api"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// scriptedProvider returns the scripted errors in order, then responses.
type scriptedProvider struct {
	mu       sync.Mutex
	errs     []error
	response string
	block    bool
	requests []api.CompletionRequest
}

func (p *scriptedProvider) Name() string  { return "fake" }
func (p *scriptedProvider) Model() string { return "fake-1" }

func (p *scriptedProvider) Complete(ctx context.Context, req api.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	var err error
	if len(p.errs) > 0 {
		err = p.errs[0]
		p.errs = p.errs[1:]
	}
	block := p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return p.response, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func transient() error {
	return &api.TransientError{StatusCode: 503, Err: errors.New("unavailable")}
}

func TestAdapter_GenerateSuccess(t *testing.T) {
	p := &scriptedProvider{response: "```python\nprint('ok')\n```"}
	a := NewAdapter(p, WithTemperature(0.3), WithMaxTokens(123))

	res := a.Generate(context.Background(), models.GenerationRequest{
		Prompt:   "print ok",
		Language: models.LanguagePython,
	})

	require.True(t, res.Success)
	assert.Equal(t, "print('ok')", res.Code)
	assert.True(t, res.Fenced)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, models.ProviderInfo{Name: "fake", Model: "fake-1"}, res.Provider)

	require.Len(t, p.requests, 1)
	assert.Equal(t, 0.3, p.requests[0].Temperature)
	assert.Equal(t, 123, p.requests[0].MaxTokens)
	assert.Contains(t, p.requests[0].User, "Target language: python")
}

func TestAdapter_UnfencedResponseIsSuccess(t *testing.T) {
	p := &scriptedProvider{response: "print('raw')"}
	a := NewAdapter(p)

	res := a.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Language: models.LanguagePython})

	require.True(t, res.Success)
	assert.Equal(t, "print('raw')", res.Code)
	assert.Equal(t, "print('raw')", res.RawResponse)
	assert.False(t, res.Fenced)
}

func TestAdapter_RetriesTransientWithIncreasingDelay(t *testing.T) {
	p := &scriptedProvider{errs: []error{transient(), transient(), transient(), transient()}}
	var delays []time.Duration
	a := NewAdapter(p,
		WithRetries(3, 5*time.Millisecond),
		WithRetryObserver(func(_ error, d time.Duration) { delays = append(delays, d) }),
	)

	res := a.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Language: models.LanguagePython})

	assert.False(t, res.Success)
	assert.Equal(t, 4, res.Attempts, "one attempt plus three retries")
	assert.Equal(t, 4, p.calls())
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Code)

	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1], "delays must strictly increase")
	}
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond}, delays)
}

func TestAdapter_RecoversAfterTransient(t *testing.T) {
	p := &scriptedProvider{errs: []error{transient()}, response: "```js\nok()\n```"}
	a := NewAdapter(p, WithRetries(2, time.Millisecond))

	res := a.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Language: models.LanguageJavaScript})

	require.True(t, res.Success)
	assert.Equal(t, "ok()", res.Code)
	assert.Equal(t, 2, res.Attempts)
}

func TestAdapter_PermanentErrorShortCircuits(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("401 unauthorized")}}
	a := NewAdapter(p, WithRetries(5, time.Millisecond))

	res := a.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Language: models.LanguagePython})

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Error, "401 unauthorized")
}

func TestAdapter_PerAttemptTimeoutIsTransient(t *testing.T) {
	p := &scriptedProvider{block: true}
	a := NewAdapter(p, WithRetries(1, time.Millisecond), WithCallTimeout(20*time.Millisecond))

	res := a.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Language: models.LanguagePython})

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, res.Error, "attempt exceeded")
}

func TestAdapter_ParentCancellationStopsRetrying(t *testing.T) {
	p := &scriptedProvider{errs: []error{transient(), transient(), transient()}}
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAdapter(p,
		WithRetries(3, time.Hour),
		WithRetryObserver(func(error, time.Duration) { cancel() }),
	)

	done := make(chan models.GenerationResult, 1)
	go func() {
		done <- a.Generate(ctx, models.GenerationRequest{Prompt: "x", Language: models.LanguagePython})
	}()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("adapter kept waiting after cancellation")
	}
}

func TestAdapter_RepairRequest(t *testing.T) {
	p := &scriptedProvider{response: "```python\nfixed = True\n```"}
	a := NewAdapter(p, WithTemperature(0.9))
	report := models.NewAnalysisReport([]models.AnalysisFinding{
		{Tool: "flake8", ExitCode: 1, Stdout: "E225 missing whitespace"},
	})

	res := a.Repair(context.Background(), "fixed=True", report, models.LanguagePython)

	require.True(t, res.Success)
	assert.Equal(t, "fixed = True", res.Code)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Zero(t, req.Temperature, "repairs are deterministic")
	assert.Contains(t, req.User, "fixed=True")
	assert.Contains(t, req.User, "E225 missing whitespace")
	assert.True(t, strings.Contains(req.User, `"tool": "flake8"`))
	assert.Equal(t, repairSystemPrompt, req.System)
}

func TestAdapter_RateLimit(t *testing.T) {
	p := &scriptedProvider{response: "ok"}
	a := NewAdapter(p, WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		res := a.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Language: models.LanguageText})
		require.True(t, res.Success)
	}

	// Burst of one: the second and third calls wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

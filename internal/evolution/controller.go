// Package evolution sequences generation, analysis, gating and repair into
// a bounded loop over immutable, iteration-numbered artifacts.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/arifi/internal/gate"
	"github.com/ShayCichocki/arifi/internal/generation"
	"github.com/ShayCichocki/arifi/internal/store"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// DefaultMaxIterations is the number of repairs allowed before giving up.
const DefaultMaxIterations = 3

// ErrInvariant is returned when the session history stops being a
// contiguous, consistent chain. It indicates a bug, not a runtime failure.
var ErrInvariant = errors.New("evolution invariant violated")

// Analyzer produces the analysis report of one artifact.
type Analyzer interface {
	Analyze(ctx context.Context, artifact models.Artifact) models.AnalysisReport
}

// TransitionFunc observes every state entered by a run. It is called
// synchronously from the loop and must not retain session.
type TransitionFunc func(state State, session *models.EvolutionSession)

// Controller runs evolution sessions. A Controller may run several
// sessions one after another; each run gets its own store and counter.
type Controller struct {
	generator     generation.Generator
	analyzer      Analyzer
	outputDir     string
	maxIterations int
	instructions  string
	onTransition  TransitionFunc
	newID         func() string
	now           func() time.Time
	storeOpts     []store.Option
	logger        *zap.Logger
	stopped       atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxIterations sets the repair bound. Negative values are treated as 0.
func WithMaxIterations(n int) Option {
	return func(c *Controller) {
		if n < 0 {
			n = 0
		}
		c.maxIterations = n
	}
}

// WithInstructions adds free-form instructions to every generation request.
func WithInstructions(s string) Option {
	return func(c *Controller) {
		c.instructions = s
	}
}

// OnTransition registers fn as the transition observer.
func OnTransition(fn TransitionFunc) Option {
	return func(c *Controller) {
		c.onTransition = fn
	}
}

// WithIDGenerator overrides how session IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStoreOptions passes extra options to every session store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(c *Controller) {
		c.storeOpts = append(c.storeOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a controller writing sessions under outputDir.
func NewController(gen generation.Generator, analyzer Analyzer, outputDir string, opts ...Option) *Controller {
	c := &Controller{
		generator:     gen,
		analyzer:      analyzer,
		outputDir:     outputDir,
		maxIterations: DefaultMaxIterations,
		newID:         uuid.NewString,
		now:           time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("evolution")
	return c
}

// MaxIterations returns the repair bound.
func (c *Controller) MaxIterations() int {
	return c.maxIterations
}

// Stop asks the running session to abort at the next state boundary.
// In-flight generation, repair and analysis calls are not interrupted.
// Stop is sticky: later runs abort immediately.
func (c *Controller) Stop() {
	c.stopped.Store(true)
}

// Run executes one session for prompt and returns its full history,
// whatever terminal state is reached. The returned error is non-nil only
// for storage failures (wrapping store.ErrStorageWrite) and invariant
// violations (wrapping ErrInvariant); the session is returned with it.
func (c *Controller) Run(ctx context.Context, prompt string, lang models.Language) (*models.EvolutionSession, error) {
	r := &run{
		Controller: c,
		session: &models.EvolutionSession{
			ID:        c.newID(),
			Prompt:    prompt,
			Language:  lang,
			StartedAt: c.now().UTC(),
		},
	}
	r.logger = c.logger.With(zap.String("session", r.session.ID))
	return r.execute(ctx)
}

// run holds the per-session state of one Controller.Run call.
type run struct {
	*Controller
	session *models.EvolutionSession
	store   *store.Store
	logger  *zap.Logger
}

func (r *run) execute(ctx context.Context) (*models.EvolutionSession, error) {
	st, err := store.Open(r.outputDir, r.session.ID, r.session.Prompt,
		append([]store.Option{store.WithLogger(r.Controller.logger)}, r.storeOpts...)...)
	if err != nil {
		return r.fail(err)
	}
	r.store = st
	r.session.OutputDir = st.Dir()
	r.enter(StateInit)

	if r.interrupted(ctx) {
		return r.abort(ctx)
	}

	result := r.generator.Generate(ctx, models.GenerationRequest{
		Prompt:       r.session.Prompt,
		Language:     r.session.Language,
		Instructions: r.instructions,
	})
	if !result.Success {
		return r.finish(StateAborted, models.TerminationGenerationFailed, result.Error), nil
	}

	current, err := r.save(result.Code, models.GeneratedProvenance())
	if err != nil {
		return r.fail(err)
	}

	for {
		if r.interrupted(ctx) {
			return r.abort(ctx)
		}

		k := current.Iteration
		report := r.analyzer.Analyze(ctx, current)
		ref, err := r.store.SaveReport(k, report)
		if err != nil {
			return r.fail(err)
		}
		passed := gate.Passes(report)
		r.session.Reports = append(r.session.Reports, report)
		r.session.Verdicts = append(r.session.Verdicts, passed)
		if len(r.session.Reports) != len(r.session.Artifacts) {
			return r.fail(fmt.Errorf("%w: %d reports for %d artifacts",
				ErrInvariant, len(r.session.Reports), len(r.session.Artifacts)))
		}

		r.logger.Info("artifact analyzed",
			zap.Int("iteration", k),
			zap.Bool("passed", passed),
			zap.Strings("failing", report.Failing()),
		)
		r.enter(StateAnalyzed)

		if passed {
			return r.finish(StatePassed, models.TerminationPassedGate, ""), nil
		}
		if k >= r.maxIterations {
			return r.finish(StateExhausted, models.TerminationMaxIterations, ""), nil
		}

		if r.interrupted(ctx) {
			return r.abort(ctx)
		}
		r.enter(StateRepairing)

		result := r.generator.Repair(ctx, current.Content, report, r.session.Language)
		if !result.Success {
			return r.finish(StateAborted, models.TerminationRepairFailed, result.Error), nil
		}

		current, err = r.save(result.Code, models.RepairedProvenance(k, ref))
		if err != nil {
			return r.fail(err)
		}
	}
}

// save stores code as the next artifact and appends it to the session.
func (r *run) save(code string, prov models.Provenance) (models.Artifact, error) {
	artifact, err := r.store.Save(code, r.session.Language, prov)
	if err != nil {
		return models.Artifact{}, err
	}
	if artifact.Iteration != len(r.session.Artifacts) {
		return models.Artifact{}, fmt.Errorf("%w: stored iteration %d, expected %d",
			ErrInvariant, artifact.Iteration, len(r.session.Artifacts))
	}
	r.session.Artifacts = append(r.session.Artifacts, artifact)
	r.enter(StateGenerated)
	return artifact, nil
}

func (r *run) interrupted(ctx context.Context) bool {
	return r.stopped.Load() || ctx.Err() != nil
}

func (r *run) abort(ctx context.Context) (*models.EvolutionSession, error) {
	reason := "stopped"
	if err := ctx.Err(); err != nil {
		reason = err.Error()
	}
	return r.finish(StateAborted, models.TerminationAborted, reason), nil
}

// fail terminates the session on a storage or invariant error and returns
// the error alongside the session.
func (r *run) fail(err error) (*models.EvolutionSession, error) {
	r.logger.Error("session aborted", zap.Error(err))
	return r.finish(StateAborted, models.TerminationAborted, err.Error()), err
}

func (r *run) finish(state State, reason models.TerminationReason, errText string) *models.EvolutionSession {
	r.session.Termination = reason
	r.session.Error = errText
	r.session.FinishedAt = r.now().UTC()

	fields := []zap.Field{
		zap.String("termination", string(reason)),
		zap.Int("artifacts", len(r.session.Artifacts)),
	}
	if errText != "" {
		fields = append(fields, zap.String("error", errText))
	}
	r.logger.Info("session finished", fields...)
	r.enter(state)
	return r.session
}

func (r *run) enter(state State) {
	r.logger.Debug("state transition", zap.Stringer("state", state))
	if r.onTransition != nil {
		r.onTransition(state, r.session)
	}
}

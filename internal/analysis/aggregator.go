package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/arifi/internal/config"
	"github.com/ShayCichocki/arifi/internal/exec"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// Aggregator runs every analyzer configured for an artifact's language and
// collects one finding per analyzer.
type Aggregator struct {
	runner      exec.CommandRunner
	table       Table
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-analyzer timeout used when a descriptor has none.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithConcurrency sets how many analyzers may run at once for one artifact.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator over table. Analyzers run sequentially
// unless WithConcurrency is given.
func NewAggregator(runner exec.CommandRunner, table Table, opts ...Option) *Aggregator {
	a := &Aggregator{
		runner:      runner,
		table:       table,
		timeout:     DefaultTimeout,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("analysis")
	return a
}

// NewFromConfig creates an aggregator from the analysis configuration.
func NewFromConfig(cfg config.AnalysisConfig, runner exec.CommandRunner, logger *zap.Logger) *Aggregator {
	return NewAggregator(runner, TableFromConfig(cfg),
		WithTimeout(cfg.Timeout),
		WithConcurrency(cfg.Concurrency),
		WithLogger(logger),
	)
}

// Table returns the analyzer table in use.
func (a *Aggregator) Table() Table {
	return a.table
}

// Analyze runs the analyzers for the artifact's language against its
// persisted file. Failures of individual analyzers, including timeouts and
// missing executables, are recorded as findings and never abort the run.
// The findings are in table order regardless of completion order.
func (a *Aggregator) Analyze(ctx context.Context, artifact models.Artifact) models.AnalysisReport {
	descriptors := a.table.For(artifact.Language)
	if len(descriptors) == 0 {
		a.logger.Debug("no analyzers configured", zap.String("language", string(artifact.Language)))
		return models.NewAnalysisReport(nil)
	}

	findings := make([]models.AnalysisFinding, len(descriptors))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, d := range descriptors {
		g.Go(func() error {
			findings[i] = a.run(ctx, d, artifact.Path)
			return nil
		})
	}
	// Workers never return an error.
	_ = g.Wait()

	return models.NewAnalysisReport(findings)
}

// run invokes one analyzer and converts the outcome into a finding.
func (a *Aggregator) run(ctx context.Context, d Descriptor, path string) models.AnalysisFinding {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = a.timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Analyzers run inside the artifact's directory, so a relative path
	// would be resolved twice.
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	res := a.runner.Run(runCtx, filepath.Dir(path), d.Command, d.Argv(path)...)

	finding := models.AnalysisFinding{
		Tool:         d.Name,
		ExitCode:     res.ExitCode,
		Stdout:       strings.TrimSpace(string(res.Stdout)),
		Stderr:       strings.TrimSpace(string(res.Stderr)),
		Duration:     res.Duration,
		TimedOut:     res.TimedOut,
		LaunchFailed: res.LaunchFailed(),
	}

	switch {
	case res.TimedOut:
		finding.Stderr = appendNote(finding.Stderr, fmt.Sprintf("analyzer timed out after %s", timeout))
	case res.Err != nil:
		finding.Stderr = appendNote(finding.Stderr, res.Err.Error())
	}

	fields := []zap.Field{
		zap.String("tool", d.Name),
		zap.Int("exit_code", finding.ExitCode),
		zap.Duration("duration", finding.Duration),
	}
	switch {
	case finding.TimedOut:
		a.logger.Warn("analyzer timed out", fields...)
	case finding.LaunchFailed:
		a.logger.Warn("analyzer unavailable", append(fields, zap.Error(res.Err))...)
	default:
		a.logger.Debug("analyzer finished", fields...)
	}

	return finding
}

func appendNote(text, note string) string {
	if text == "" {
		return note
	}
	return text + "\n" + note
}

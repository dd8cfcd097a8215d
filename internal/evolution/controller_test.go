package evolution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ShayCichocki/arifi/internal/analysis"
	"github.com/ShayCichocki/arifi/internal/exec"
	"github.com/ShayCichocki/arifi/internal/generation"
	"github.com/ShayCichocki/arifi/internal/store"
	"github.com/ShayCichocki/arifi/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGenerator returns scripted results and records every call.
type fakeGenerator struct {
	mu       sync.Mutex
	generate models.GenerationResult
	repairs  []models.GenerationResult
	// repaired counts repair calls; each returns repairs[i] or, past the
	// end, a fresh successful repair.
	repaired    int
	repairCode  []string
	repairInput []models.AnalysisReport
}

func (f *fakeGenerator) Generate(_ context.Context, _ models.GenerationRequest) models.GenerationResult {
	return f.generate
}

func (f *fakeGenerator) Repair(_ context.Context, code string, report models.AnalysisReport, _ models.Language) models.GenerationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairCode = append(f.repairCode, code)
	f.repairInput = append(f.repairInput, report)
	i := f.repaired
	f.repaired++
	if i < len(f.repairs) {
		return f.repairs[i]
	}
	return models.GenerationResult{Success: true, Code: fmt.Sprintf("repair %d", i+1)}
}

func (f *fakeGenerator) Info() models.ProviderInfo {
	return models.ProviderInfo{Name: "fake", Model: "fake"}
}

// fakeAnalyzer fails every artifact whose content is in failing, and
// calls hook before returning.
type fakeAnalyzer struct {
	failing map[string]bool
	calls   []int
	hook    func(iteration int)
}

func (f *fakeAnalyzer) Analyze(_ context.Context, a models.Artifact) models.AnalysisReport {
	f.calls = append(f.calls, a.Iteration)
	if f.hook != nil {
		f.hook(a.Iteration)
	}
	code := 0
	if f.failing == nil || f.failing[a.Content] {
		code = 1
	}
	return models.NewAnalysisReport([]models.AnalysisFinding{
		{Tool: "lint", ExitCode: code},
		{Tool: "types", ExitCode: 0},
	})
}

func alwaysFail() *fakeAnalyzer {
	return &fakeAnalyzer{}
}

func failOnly(contents ...string) *fakeAnalyzer {
	m := make(map[string]bool, len(contents))
	for _, c := range contents {
		m[c] = true
	}
	return &fakeAnalyzer{failing: m}
}

func generated(code string) models.GenerationResult {
	return models.GenerationResult{Success: true, Code: code}
}

func newController(t *testing.T, gen generation.Generator, an Analyzer, opts ...Option) (*Controller, string) {
	t.Helper()
	root := t.TempDir()
	opts = append([]Option{WithIDGenerator(func() string { return "session" })}, opts...)
	return NewController(gen, an, root, opts...), root
}

func TestRun_ImmediatePass(t *testing.T) {
	gen := &fakeGenerator{generate: generated("good")}
	var states []State
	c, root := newController(t, gen, failOnly(), OnTransition(func(s State, _ *models.EvolutionSession) {
		states = append(states, s)
	}))

	sess, err := c.Run(context.Background(), "add numbers", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationPassedGate, sess.Termination)
	require.Len(t, sess.Artifacts, 1)
	assert.Equal(t, []bool{true}, sess.Verdicts)
	assert.Zero(t, gen.repaired)
	assert.Equal(t, filepath.Join(root, "session"), sess.OutputDir)
	assert.Equal(t, []State{StateInit, StateGenerated, StateAnalyzed, StatePassed}, states)

	data, err := os.ReadFile(filepath.Join(root, "session", "v000.py"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))
	assert.FileExists(t, filepath.Join(root, "session", "v000.report.json"))
}

func TestRun_RelativeOutputRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	check := filepath.Join(t.TempDir(), "check.sh")
	require.NoError(t, os.WriteFile(check, []byte("#!/bin/sh\ntest -f \"$1\" || { echo \"missing $1\" >&2; exit 2; }\n"), 0755))
	agg := analysis.NewAggregator(exec.NewRunner(), analysis.Table{
		models.LanguagePython: {{Name: "check", Command: check}},
	})

	t.Chdir(t.TempDir())
	c := NewController(generation.NewStub(), agg, "output", WithIDGenerator(func() string { return "rel" }))

	sess, err := c.Run(context.Background(), "add numbers", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationPassedGate, sess.Termination)
	require.Len(t, sess.Reports, 1)
	finding, ok := sess.Reports[0].Finding("check")
	require.True(t, ok)
	assert.Equal(t, 0, finding.ExitCode, finding.Stderr)
	assert.True(t, filepath.IsAbs(sess.OutputDir))
	assert.FileExists(t, filepath.Join("output", "rel", "v000.py"))
}

func TestRun_ExhaustThenStop(t *testing.T) {
	gen := &fakeGenerator{generate: generated("bad")}
	an := alwaysFail()
	c, root := newController(t, gen, an)

	sess, err := c.Run(context.Background(), "add numbers", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationMaxIterations, sess.Termination)
	require.Len(t, sess.Artifacts, 4)
	require.Len(t, sess.Reports, 4)
	assert.Equal(t, []bool{false, false, false, false}, sess.Verdicts)
	assert.Equal(t, []int{0, 1, 2, 3}, an.calls)
	assert.Equal(t, 3, gen.repaired)
	assert.Equal(t, 3, sess.Repairs())

	for i, a := range sess.Artifacts {
		assert.Equal(t, i, a.Iteration)
		if i == 0 {
			assert.Equal(t, models.SourceGenerated, a.Provenance.Source)
			continue
		}
		assert.Equal(t, models.SourceRepaired, a.Provenance.Source)
		require.NotNil(t, a.Provenance.Parent)
		assert.Equal(t, i-1, *a.Provenance.Parent)
		assert.Equal(t, store.ReportName(i-1), a.Provenance.ReportRef)
	}

	snap, err := store.Load(filepath.Join(root, "session"))
	require.NoError(t, err)
	assert.Len(t, snap.Artifacts, 4)
	assert.Len(t, snap.Reports, 4)
}

func TestRun_BoundedByMaxIterations(t *testing.T) {
	for _, m := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("max=%d", m), func(t *testing.T) {
			gen := &fakeGenerator{generate: generated("bad")}
			c, _ := newController(t, gen, alwaysFail(), WithMaxIterations(m))

			sess, err := c.Run(context.Background(), "p", models.LanguagePython)
			require.NoError(t, err)
			assert.Equal(t, models.TerminationMaxIterations, sess.Termination)
			assert.Equal(t, m, gen.repaired)
			assert.Len(t, sess.Artifacts, m+1)
		})
	}
}

func TestRun_RepairReceivesCurrentCodeAndReport(t *testing.T) {
	gen := &fakeGenerator{generate: generated("bad")}
	c, _ := newController(t, gen, failOnly("bad"))

	sess, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationPassedGate, sess.Termination)
	assert.Equal(t, []string{"bad"}, gen.repairCode)
	require.Len(t, gen.repairInput, 1)
	assert.Equal(t, []string{"lint"}, gen.repairInput[0].Failing())
	assert.Equal(t, []bool{false, true}, sess.Verdicts)
}

func TestRun_RepairFailure(t *testing.T) {
	gen := &fakeGenerator{
		generate: generated("bad"),
		repairs:  []models.GenerationResult{{Success: false, Error: "provider down"}},
	}
	var last State
	c, _ := newController(t, gen, alwaysFail(), OnTransition(func(s State, _ *models.EvolutionSession) {
		last = s
	}))

	sess, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationRepairFailed, sess.Termination)
	assert.Equal(t, "provider down", sess.Error)
	require.Len(t, sess.Artifacts, 1)
	final, ok := sess.Final()
	require.True(t, ok)
	assert.Equal(t, 0, final.Iteration)
	assert.Len(t, sess.Reports, 1)
	assert.Equal(t, StateAborted, last)
}

func TestRun_GenerationFailed(t *testing.T) {
	gen := &fakeGenerator{generate: models.GenerationResult{Success: false, Error: "no key"}}
	an := alwaysFail()
	c, _ := newController(t, gen, an)

	sess, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationGenerationFailed, sess.Termination)
	assert.Equal(t, "no key", sess.Error)
	assert.Empty(t, sess.Artifacts)
	assert.Empty(t, an.calls)
	assert.False(t, sess.FinishedAt.IsZero())
}

func TestRun_StopAtBoundary(t *testing.T) {
	gen := &fakeGenerator{generate: generated("bad")}
	var c *Controller
	an := &fakeAnalyzer{hook: func(iteration int) {
		if iteration == 1 {
			c.Stop()
		}
	}}
	c, _ = newController(t, gen, an)

	sess, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationAborted, sess.Termination)
	assert.Equal(t, "stopped", sess.Error)
	assert.Len(t, sess.Artifacts, 2)
	assert.Len(t, sess.Reports, 2, "in-flight analysis completes")
	assert.Equal(t, 1, gen.repaired)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &fakeGenerator{generate: generated("bad")}
	an := &fakeAnalyzer{hook: func(int) { cancel() }}
	c, _ := newController(t, gen, an)

	sess, err := c.Run(ctx, "p", models.LanguagePython)
	require.NoError(t, err)

	assert.Equal(t, models.TerminationAborted, sess.Termination)
	assert.Equal(t, context.Canceled.Error(), sess.Error)
	assert.Len(t, sess.Artifacts, 1)
	assert.Zero(t, gen.repaired)
}

func TestRun_StoppedBeforeStart(t *testing.T) {
	gen := &fakeGenerator{generate: generated("good")}
	c, _ := newController(t, gen, failOnly())
	c.Stop()

	sess, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)
	assert.Equal(t, models.TerminationAborted, sess.Termination)
	assert.Empty(t, sess.Artifacts)
}

func TestRun_StorageFailure(t *testing.T) {
	gen := &fakeGenerator{generate: generated("good")}
	root := t.TempDir()
	// A file where the session directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(root, "session"), nil, 0o644))

	c := NewController(gen, failOnly(), root, WithIDGenerator(func() string { return "session" }))
	sess, err := c.Run(context.Background(), "p", models.LanguagePython)

	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStorageWrite))
	require.NotNil(t, sess)
	assert.Equal(t, models.TerminationAborted, sess.Termination)
	assert.NotEmpty(t, sess.Error)
}

func TestRun_SessionsAreIndependent(t *testing.T) {
	gen := &fakeGenerator{generate: generated("good")}
	root := t.TempDir()
	c := NewController(gen, failOnly(), root)

	first, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)
	second, err := c.Run(context.Background(), "p", models.LanguagePython)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, second.Artifacts[0].Iteration)
}

func TestWithMaxIterations_Negative(t *testing.T) {
	c := NewController(&fakeGenerator{}, failOnly(), t.TempDir(), WithMaxIterations(-2))
	assert.Equal(t, 0, c.MaxIterations())
}

func TestState(t *testing.T) {
	assert.Equal(t, "passed", StatePassed.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateExhausted.Terminal())
	assert.False(t, StateRepairing.Terminal())
}

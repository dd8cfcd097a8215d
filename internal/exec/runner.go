package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// defaultWaitDelay bounds how long Run waits for output pipes to close after
// the process was killed. Children that inherited the pipes would otherwise
// keep Wait blocked past the timeout.
const defaultWaitDelay = 2 * time.Second

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct {
	waitDelay time.Duration
}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{waitDelay: defaultWaitDelay}
}

// Run executes a command and captures stdout and stderr separately.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) *Result {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = ExitTimeout
		res.TimedOut = true
		res.Err = fmt.Errorf("%s timed out after %s: %w", name, res.Duration.Round(time.Millisecond), ctx.Err())
		return res
	}

	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Exited() {
			// Command ran but failed
			res.ExitCode = exitErr.ExitCode()
			return res
		}
		// Command ran but was terminated by a signal
		res.ExitCode = ExitKilled
		res.Err = fmt.Errorf("%s terminated: %w", name, err)
		return res
	}

	// Command failed to start
	res.ExitCode = ExitLaunchFailure
	res.Err = fmt.Errorf("run %s: %w", name, err)
	return res
}

// LookPath reports where an executable would be found in PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)

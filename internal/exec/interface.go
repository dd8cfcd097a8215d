// Package exec runs external analyzer processes and captures their output.
package exec

import (
	"context"
	"time"
)

// Synthetic exit codes recorded when a process never produced a real
// status. They follow the conventions of coreutils timeout(1) and POSIX
// shells.
const (
	// ExitTimeout is recorded when the invocation exceeded its timeout.
	ExitTimeout = 124
	// ExitLaunchFailure is recorded when the executable could not be started.
	ExitLaunchFailure = 127
	// ExitKilled is recorded when the process died from a signal.
	ExitKilled = 137
)

// Result is the captured outcome of one process invocation.
type Result struct {
	// ExitCode is the process exit status, or ExitTimeout/ExitLaunchFailure.
	ExitCode int
	// Stdout is everything the process wrote to standard output.
	Stdout []byte
	// Stderr is everything the process wrote to standard error.
	Stderr []byte
	// Duration is the wall-clock time spent.
	Duration time.Duration
	// TimedOut is set when the context deadline expired before exit.
	TimedOut bool
	// Err is the launch or wait error, nil for a normal exit of any status.
	Err error
}

// LaunchFailed returns true when the process could not be started.
func (r *Result) LaunchFailed() bool {
	return r.Err != nil && !r.TimedOut && r.ExitCode == ExitLaunchFailure
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command with separate stdout/stderr capture. It never
	// returns a nil Result; failures to launch or finish are reported in
	// Result.Err with a synthetic exit code.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) *Result

	// LookPath reports where an executable would be found.
	LookPath(name string) (string, error)
}

package state

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// InterruptedSession describes a session left in the running state by a
// process that no longer exists.
type InterruptedSession struct {
	SessionID string
	OutputDir string
	StartedAt time.Time
	PID       int
}

// RecoveryManager detects sessions whose process died before recording a
// result.
type RecoveryManager struct {
	db    *DB
	alive func(pid int) bool
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db, alive: isProcessAlive}
}

// CheckForInterrupted returns every running session whose process is gone.
// Sessions owned by a live process, including this one, are skipped.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedSession, error) {
	status := SessionRunning
	sessions, err := rm.db.ListSessions(&status, 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []InterruptedSession
	for _, s := range sessions {
		if s.PID == os.Getpid() || rm.alive(s.PID) {
			continue
		}
		out = append(out, InterruptedSession{
			SessionID: s.ID,
			OutputDir: s.OutputDir,
			StartedAt: s.StartedAt,
			PID:       s.PID,
		})
	}
	return out, nil
}

// MarkInterrupted moves every interrupted session to SessionInterrupted
// and returns how many were updated.
func (rm *RecoveryManager) MarkInterrupted() (int, error) {
	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}
	for _, s := range interrupted {
		if err := rm.db.UpdateSessionStatus(s.SessionID, SessionInterrupted); err != nil {
			return 0, fmt.Errorf("mark %s interrupted: %w", s.SessionID, err)
		}
	}
	return len(interrupted), nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

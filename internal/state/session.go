package state

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ShayCichocki/arifi/pkg/models"
)

// SessionStatus represents the lifecycle status of an indexed session.
type SessionStatus string

const (
	SessionRunning     SessionStatus = "running"
	SessionFinished    SessionStatus = "finished"
	SessionInterrupted SessionStatus = "interrupted"
)

// Session is the index row of one evolution session.
type Session struct {
	ID          string                   `json:"id" yaml:"id"`
	Prompt      string                   `json:"prompt" yaml:"prompt"`
	Language    models.Language          `json:"language" yaml:"language"`
	Provider    string                   `json:"provider" yaml:"provider"`
	Model       string                   `json:"model" yaml:"model"`
	OutputDir   string                   `json:"output_dir" yaml:"output_dir"`
	Status      SessionStatus            `json:"status" yaml:"status"`
	Termination models.TerminationReason `json:"termination" yaml:"termination"`
	Error       string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Iterations  int                      `json:"iterations" yaml:"iterations"`
	PID         int                      `json:"pid,omitempty" yaml:"pid,omitempty"`
	StartedAt   time.Time                `json:"started_at" yaml:"started_at"`
	FinishedAt  *time.Time               `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Passed returns true if the session ended at the quality gate.
func (s *Session) Passed() bool {
	return s.Termination == models.TerminationPassedGate
}

// ArtifactRow is the index row of one stored artifact and its verdict.
type ArtifactRow struct {
	SessionID    string                `json:"session_id" yaml:"session_id"`
	Iteration    int                   `json:"iteration" yaml:"iteration"`
	Path         string                `json:"path" yaml:"path"`
	Source       models.ArtifactSource `json:"source" yaml:"source"`
	Parent       *int                  `json:"parent,omitempty" yaml:"parent,omitempty"`
	ReportRef    string                `json:"report_ref,omitempty" yaml:"report_ref,omitempty"`
	Analyzed     bool                  `json:"analyzed" yaml:"analyzed"`
	Passed       bool                  `json:"passed" yaml:"passed"`
	FailingTools []string              `json:"failing_tools,omitempty" yaml:"failing_tools,omitempty"`
	CreatedAt    time.Time             `json:"created_at" yaml:"created_at"`
}

// StartSession records a session as running under the current process.
func (db *DB) StartSession(s *models.EvolutionSession, info models.ProviderInfo) error {
	_, err := db.Exec(`
		INSERT INTO sessions (id, prompt, language, provider, model, output_dir, status, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Prompt, string(s.Language), info.Name, info.Model, s.OutputDir,
		string(SessionRunning), os.Getpid(), formatTime(s.StartedAt))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// RecordSession stores the final state of s with its artifacts and
// verdicts in one transaction. The session row is created if StartSession
// was not called.
func (db *DB) RecordSession(s *models.EvolutionSession, info models.ProviderInfo) error {
	finished := s.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, prompt, language, provider, model, output_dir, status, termination, error, iterations, pid, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				provider = excluded.provider,
				model = excluded.model,
				status = excluded.status,
				termination = excluded.termination,
				error = excluded.error,
				iterations = excluded.iterations,
				pid = 0,
				finished_at = excluded.finished_at
		`, s.ID, s.Prompt, string(s.Language), info.Name, info.Model, s.OutputDir,
			string(SessionFinished), string(s.Termination), s.Error, len(s.Artifacts),
			formatTime(s.StartedAt), formatTime(finished))
		if err != nil {
			return fmt.Errorf("record session: %w", err)
		}

		for _, a := range s.Artifacts {
			var parent sql.NullInt64
			if a.Provenance.Parent != nil {
				parent = sql.NullInt64{Int64: int64(*a.Provenance.Parent), Valid: true}
			}

			analyzed := a.Iteration < len(s.Verdicts)
			passed := analyzed && s.Verdicts[a.Iteration]
			var failing []string
			if a.Iteration < len(s.Reports) {
				failing = s.Reports[a.Iteration].Failing()
			}

			_, err := tx.Exec(`
				INSERT OR REPLACE INTO artifacts (session_id, iteration, path, source, parent, report_ref, analyzed, passed, failing_tools, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, s.ID, a.Iteration, a.Path, string(a.Provenance.Source), parent, a.Provenance.ReportRef,
				boolToInt(analyzed), boolToInt(passed), strings.Join(failing, ","), formatTime(a.CreatedAt))
			if err != nil {
				return fmt.Errorf("record artifact %d: %w", a.Iteration, err)
			}
		}
		return nil
	})
}

const sessionColumns = `id, prompt, language, provider, model, output_dir, status, termination, error, iterations, pid, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&s.ID, &s.Prompt, &s.Language, &s.Provider, &s.Model, &s.OutputDir,
		&s.Status, &s.Termination, &s.Error, &s.Iterations, &s.PID, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	s.StartedAt, _ = parseTime(startedAt)
	s.FinishedAt = parseNullableTime(finishedAt)
	return &s, nil
}

// GetSession retrieves a session by ID. It returns nil, nil when the
// session is unknown.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// FindSession resolves a session by ID or unique ID prefix.
func (db *DB) FindSession(prefix string) (*Session, error) {
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions WHERE id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	defer rows.Close()

	var matches []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		matches = append(matches, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		if matches[0].ID == prefix {
			return matches[0], nil
		}
		return nil, fmt.Errorf("session prefix %q is ambiguous", prefix)
	}
}

// ListSessions lists sessions newest first, optionally filtered by status.
// A limit of 0 returns every session.
func (db *DB) ListSessions(status *SessionStatus, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionStatus changes the status of a session.
func (db *DB) UpdateSessionStatus(id string, status SessionStatus) error {
	_, err := db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// DeleteSession deletes a session and its artifact rows.
func (db *DB) DeleteSession(id string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListArtifacts returns the artifact rows of a session in iteration order.
func (db *DB) ListArtifacts(sessionID string) ([]ArtifactRow, error) {
	rows, err := db.Query(`
		SELECT session_id, iteration, path, source, parent, report_ref, analyzed, passed, failing_tools, created_at
		FROM artifacts WHERE session_id = ? ORDER BY iteration
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRow
	for rows.Next() {
		var a ArtifactRow
		var parent sql.NullInt64
		var analyzed, passed int
		var failing, createdAt string
		if err := rows.Scan(&a.SessionID, &a.Iteration, &a.Path, &a.Source, &parent, &a.ReportRef,
			&analyzed, &passed, &failing, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if parent.Valid {
			p := int(parent.Int64)
			a.Parent = &p
		}
		a.Analyzed = analyzed != 0
		a.Passed = passed != 0
		if failing != "" {
			a.FailingTools = strings.Split(failing, ",")
		}
		a.CreatedAt, _ = parseTime(createdAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

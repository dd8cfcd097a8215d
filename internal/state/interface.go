package state

import (
	"io"

	"github.com/ShayCichocki/arifi/pkg/models"
)

// SessionRecorder persists the lifecycle of evolution sessions.
type SessionRecorder interface {
	StartSession(s *models.EvolutionSession, info models.ProviderInfo) error
	RecordSession(s *models.EvolutionSession, info models.ProviderInfo) error
}

// SessionReader queries indexed sessions.
type SessionReader interface {
	GetSession(id string) (*Session, error)
	FindSession(prefix string) (*Session, error)
	ListSessions(status *SessionStatus, limit int) ([]Session, error)
	ListArtifacts(sessionID string) ([]ArtifactRow, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Index is the full session index.
type Index interface {
	io.Closer
	Migrator
	SessionRecorder
	SessionReader
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Index           = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ SessionRecorder = (*DB)(nil)
	_ SessionReader   = (*DB)(nil)
)

package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	for _, table := range []string{"sessions", "artifacts"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	want := filepath.Join("/custom/data", "arifi", "arifi.db")
	if got := DefaultDBPath(); got != want {
		t.Errorf("DefaultDBPath() = %q, want %q", got, want)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)

	got, err := parseTime(formatTime(now))
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("round trip = %v, want %v", got, now)
	}
}

func TestPurgeOldSessions(t *testing.T) {
	db := setupTestDB(t)

	old := newSession("old", time.Now().Add(-48*time.Hour))
	recent := newSession("recent", time.Now())
	for _, s := range []*testSession{old, recent} {
		if err := db.RecordSession(s.EvolutionSession, s.info); err != nil {
			t.Fatalf("RecordSession failed: %v", err)
		}
	}

	n, err := db.PurgeOldSessions(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d sessions, want 1", n)
	}

	if s, _ := db.GetSession("old"); s != nil {
		t.Error("old session should be gone")
	}
	rows, err := db.ListArtifacts("old")
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("artifacts of purged session should cascade, got %d", len(rows))
	}
}

// Package store persists the versioned artifacts and analysis reports of an
// evolution session.
//
// Records are immutable. Each iteration k of a session is stored as
//
//	<root>/<session>/v{k:03}.{ext}            content
//	<root>/<session>/v{k:03}.{ext}.meta.json  metadata (written last)
//	<root>/<session>/v{k:03}.report.json      analysis report of iteration k
//
// A record is complete only once its metadata file exists.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/arifi/pkg/models"
)

var (
	// ErrStorageWrite wraps every failure to persist a record.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrRecordExists is returned when a record for the iteration is
	// already on disk.
	ErrRecordExists = errors.New("record already exists")
	// ErrIncompleteRecord is returned when content exists without
	// metadata, or the content does not match its recorded digest.
	ErrIncompleteRecord = errors.New("incomplete record")
	// ErrInvalidProvenance is returned when provenance does not fit the
	// next iteration.
	ErrInvalidProvenance = errors.New("invalid provenance")
)

// Metadata is the sidecar record written next to each artifact.
type Metadata struct {
	SessionID  string            `json:"session_id"`
	Iteration  int               `json:"iteration"`
	Prompt     string            `json:"prompt"`
	Language   models.Language   `json:"language"`
	CreatedAt  time.Time         `json:"created_at"`
	Provenance models.Provenance `json:"provenance"`
	Repaired   bool              `json:"repaired"`
	SHA256     string            `json:"sha256"`
	File       string            `json:"file"`
}

// reportRecord is the on-disk form of an analysis report.
type reportRecord struct {
	SessionID string                `json:"session_id"`
	Iteration int                   `json:"iteration"`
	CreatedAt time.Time             `json:"created_at"`
	Findings  models.AnalysisReport `json:"findings"`
}

// Store writes the records of one session. It owns the iteration counter:
// the next Save always targets iteration Next().
type Store struct {
	dir       string
	sessionID string
	prompt    string

	mu   sync.Mutex
	next int

	now    func() time.Time
	link   func(oldname, newname string) error
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates the session directory under root and returns its store.
// The directory must not already contain records. Root is resolved to an
// absolute path so artifact paths stay valid from any working directory.
func Open(root, sessionID, prompt string, opts ...Option) (*Store, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrStorageWrite)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving output root: %v", ErrStorageWrite, err)
	}
	dir := filepath.Join(absRoot, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating session directory: %v", ErrStorageWrite, err)
	}

	existing, err := filepath.Glob(filepath.Join(dir, "v*.meta.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: scanning session directory: %v", ErrStorageWrite, err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: session directory %s is not empty: %w", ErrStorageWrite, dir, ErrRecordExists)
	}

	s := &Store{
		dir:       dir,
		sessionID: sessionID,
		prompt:    prompt,
		now:       time.Now,
		link:      os.Link,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("store").With(zap.String("session", sessionID))
	return s, nil
}

// Dir returns the session directory.
func (s *Store) Dir() string {
	return s.dir
}

// SessionID returns the session this store writes.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Next returns the iteration the next Save will write.
func (s *Store) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// ContentName returns the content file name for iteration k.
func ContentName(k int, lang models.Language) string {
	return fmt.Sprintf("v%03d.%s", k, lang.Extension())
}

// MetaName returns the metadata file name for iteration k.
func MetaName(k int, lang models.Language) string {
	return ContentName(k, lang) + ".meta.json"
}

// ReportName returns the report file name for iteration k.
func ReportName(k int) string {
	return fmt.Sprintf("v%03d.report.json", k)
}

// Save writes content as the next iteration. Either both the content and
// its metadata become visible or neither does; on failure the counter is
// unchanged and the error wraps ErrStorageWrite.
func (s *Store) Save(content string, lang models.Language, prov models.Provenance) (models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.next
	if err := checkProvenance(k, prov); err != nil {
		return models.Artifact{}, err
	}

	sum := sha256.Sum256([]byte(content))
	artifact := models.Artifact{
		Iteration:  k,
		Content:    content,
		Language:   lang,
		CreatedAt:  s.now().UTC(),
		Provenance: prov,
		Path:       filepath.Join(s.dir, ContentName(k, lang)),
		MetaPath:   filepath.Join(s.dir, MetaName(k, lang)),
	}

	meta, err := json.MarshalIndent(Metadata{
		SessionID:  s.sessionID,
		Iteration:  k,
		Prompt:     s.prompt,
		Language:   lang,
		CreatedAt:  artifact.CreatedAt,
		Provenance: prov,
		Repaired:   prov.Source == models.SourceRepaired,
		SHA256:     hex.EncodeToString(sum[:]),
		File:       ContentName(k, lang),
	}, "", "  ")
	if err != nil {
		return models.Artifact{}, fmt.Errorf("%w: encoding metadata: %v", ErrStorageWrite, err)
	}

	if err := s.commit([]pending{
		{path: artifact.Path, data: []byte(content)},
		{path: artifact.MetaPath, data: meta},
	}); err != nil {
		s.logger.Error("artifact write failed", zap.Int("iteration", k), zap.Error(err))
		return models.Artifact{}, err
	}

	s.next++
	s.logger.Debug("artifact saved",
		zap.Int("iteration", k),
		zap.String("path", artifact.Path),
		zap.String("source", string(prov.Source)),
	)
	return artifact, nil
}

// SaveReport persists the analysis report of iteration k and returns its
// reference (file name). Reports are immutable like artifacts.
func (s *Store) SaveReport(k int, report models.AnalysisReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k < 0 || k >= s.next {
		return "", fmt.Errorf("%w: no artifact for iteration %d", ErrStorageWrite, k)
	}

	data, err := json.MarshalIndent(reportRecord{
		SessionID: s.sessionID,
		Iteration: k,
		CreatedAt: s.now().UTC(),
		Findings:  report,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encoding report: %v", ErrStorageWrite, err)
	}

	ref := ReportName(k)
	if err := s.commit([]pending{{path: filepath.Join(s.dir, ref), data: data}}); err != nil {
		s.logger.Error("report write failed", zap.Int("iteration", k), zap.Error(err))
		return "", err
	}
	return ref, nil
}

// Read returns the stored content of a, verifying it against the digest
// recorded in its metadata.
func (s *Store) Read(a models.Artifact) (string, error) {
	return readVerified(a.Path, a.MetaPath)
}

// ReadReport loads a report previously written by SaveReport.
func (s *Store) ReadReport(ref string) (models.AnalysisReport, error) {
	return readReport(filepath.Join(s.dir, ref))
}

func checkProvenance(k int, prov models.Provenance) error {
	switch {
	case !prov.Source.Valid():
		return fmt.Errorf("%w: unknown source %q", ErrInvalidProvenance, prov.Source)
	case k == 0 && prov.Source != models.SourceGenerated:
		return fmt.Errorf("%w: iteration 0 must be generated", ErrInvalidProvenance)
	case k > 0 && prov.Source != models.SourceRepaired:
		return fmt.Errorf("%w: iteration %d must be repaired", ErrInvalidProvenance, k)
	case k > 0 && (prov.Parent == nil || *prov.Parent != k-1):
		return fmt.Errorf("%w: iteration %d must name parent %d", ErrInvalidProvenance, k, k-1)
	}
	return nil
}

// pending is one file of a record.
type pending struct {
	path string
	data []byte
	tmp  string
}

// commit stages every file to a synced temp file, then hard-links them
// into place in order. Linking fails if the target exists, so nothing is
// ever overwritten. If any step fails, files linked so far are removed.
func (s *Store) commit(files []pending) error {
	defer func() {
		for _, f := range files {
			if f.tmp != "" {
				_ = os.Remove(f.tmp)
			}
		}
	}()

	for i := range files {
		if _, err := os.Lstat(files[i].path); err == nil {
			return fmt.Errorf("%w: %s: %w", ErrStorageWrite, filepath.Base(files[i].path), ErrRecordExists)
		}
		tmp, err := writeTemp(s.dir, files[i].data)
		if err != nil {
			return fmt.Errorf("%w: staging %s: %v", ErrStorageWrite, filepath.Base(files[i].path), err)
		}
		files[i].tmp = tmp
	}

	var linked []string
	for _, f := range files {
		if err := s.link(f.tmp, f.path); err != nil {
			for _, p := range linked {
				_ = os.Remove(p)
			}
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("%w: %s: %w", ErrStorageWrite, filepath.Base(f.path), ErrRecordExists)
			}
			return fmt.Errorf("%w: linking %s: %v", ErrStorageWrite, filepath.Base(f.path), err)
		}
		linked = append(linked, f.path)
	}

	syncDir(s.dir)
	return nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// syncDir flushes directory entries; errors are ignored because not every
// platform supports syncing a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

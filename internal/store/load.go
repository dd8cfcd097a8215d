package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ShayCichocki/arifi/pkg/models"
)

// Snapshot is the on-disk state of a session directory.
type Snapshot struct {
	SessionID string
	Prompt    string
	Artifacts []models.Artifact
	// Reports is keyed by iteration.
	Reports map[int]models.AnalysisReport
}

// Load reads every complete record in a session directory. Content without
// metadata is ignored; metadata whose content is missing or altered fails
// with ErrIncompleteRecord.
func Load(dir string) (*Snapshot, error) {
	metas, err := filepath.Glob(filepath.Join(dir, "v*.meta.json"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(metas) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("opening session: %w", err)
		}
	}

	snap := &Snapshot{Reports: make(map[int]models.AnalysisReport)}
	for _, metaPath := range metas {
		meta, err := readMetadata(metaPath)
		if err != nil {
			return nil, err
		}
		contentPath := filepath.Join(dir, meta.File)
		content, err := readVerified(contentPath, metaPath)
		if err != nil {
			return nil, err
		}

		snap.SessionID = meta.SessionID
		snap.Prompt = meta.Prompt
		snap.Artifacts = append(snap.Artifacts, models.Artifact{
			Iteration:  meta.Iteration,
			Content:    content,
			Language:   meta.Language,
			CreatedAt:  meta.CreatedAt,
			Provenance: meta.Provenance,
			Path:       contentPath,
			MetaPath:   metaPath,
		})
	}
	sort.Slice(snap.Artifacts, func(i, j int) bool {
		return snap.Artifacts[i].Iteration < snap.Artifacts[j].Iteration
	})

	for i, a := range snap.Artifacts {
		if a.Iteration != i {
			return nil, fmt.Errorf("%w: iteration %d missing", ErrIncompleteRecord, i)
		}
		path := filepath.Join(dir, ReportName(a.Iteration))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		report, err := readReport(path)
		if err != nil {
			return nil, err
		}
		snap.Reports[a.Iteration] = report
	}

	return snap, nil
}

func readMetadata(path string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, fmt.Errorf("%w: %s missing", ErrIncompleteRecord, filepath.Base(path))
		}
		return meta, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%w: decoding %s: %v", ErrIncompleteRecord, filepath.Base(path), err)
	}
	return meta, nil
}

func readVerified(contentPath, metaPath string) (string, error) {
	meta, err := readMetadata(metaPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(contentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s missing", ErrIncompleteRecord, filepath.Base(contentPath))
		}
		return "", fmt.Errorf("reading artifact: %w", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != meta.SHA256 {
		return "", fmt.Errorf("%w: %s does not match its recorded digest", ErrIncompleteRecord, filepath.Base(contentPath))
	}
	return string(data), nil
}

func readReport(path string) (models.AnalysisReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("reading report: %w", err)
	}
	var rec reportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.AnalysisReport{}, fmt.Errorf("decoding report %s: %w", filepath.Base(path), err)
	}
	return rec.Findings, nil
}

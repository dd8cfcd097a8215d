package models

import "time"

// ArtifactSource records how an artifact came to exist.
type ArtifactSource string

const (
	// SourceGenerated marks the initial artifact produced from the prompt.
	SourceGenerated ArtifactSource = "generated"
	// SourceRepaired marks an artifact produced by a repair call.
	SourceRepaired ArtifactSource = "repaired"
)

// Valid returns true if the source is a known value.
func (s ArtifactSource) Valid() bool {
	return s == SourceGenerated || s == SourceRepaired
}

// Provenance links an artifact to its origin.
type Provenance struct {
	// Source is generated for iteration 0 and repaired afterwards.
	Source ArtifactSource `json:"source" yaml:"source"`
	// ReportRef names the persisted report that triggered the repair.
	// Empty for generated artifacts.
	ReportRef string `json:"report_ref,omitempty" yaml:"report_ref,omitempty"`
	// Parent is the iteration this artifact was repaired from.
	Parent *int `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// GeneratedProvenance returns the provenance of an initial artifact.
func GeneratedProvenance() Provenance {
	return Provenance{Source: SourceGenerated}
}

// RepairedProvenance returns the provenance of an artifact repaired from
// parent using the report stored under reportRef.
func RepairedProvenance(parent int, reportRef string) Provenance {
	p := parent
	return Provenance{Source: SourceRepaired, ReportRef: reportRef, Parent: &p}
}

// Artifact is one immutable, iteration-numbered version of generated code.
type Artifact struct {
	// Iteration is the zero-based position in the version chain.
	Iteration int `json:"iteration" yaml:"iteration"`
	// Content is the code text.
	Content string `json:"content" yaml:"content"`
	// Language is the artifact's target language.
	Language Language `json:"language" yaml:"language"`
	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// Provenance records how this artifact was produced.
	Provenance Provenance `json:"provenance" yaml:"provenance"`
	// Path is the persisted content file.
	Path string `json:"path" yaml:"path"`
	// MetaPath is the persisted metadata record next to Path.
	MetaPath string `json:"meta_path" yaml:"meta_path"`
}

package models

import "time"

// TerminationReason classifies why an evolution loop stopped.
type TerminationReason string

const (
	// TerminationNone means the session has not terminated yet.
	TerminationNone TerminationReason = ""
	// TerminationPassedGate means the last artifact passed every analyzer.
	TerminationPassedGate TerminationReason = "PassedGate"
	// TerminationMaxIterations means the repair budget ran out while the
	// last artifact was still failing.
	TerminationMaxIterations TerminationReason = "MaxIterationsReached"
	// TerminationGenerationFailed means the initial generation call failed.
	TerminationGenerationFailed TerminationReason = "GenerationFailed"
	// TerminationRepairFailed means a repair call failed; the last
	// successful artifact is the final result.
	TerminationRepairFailed TerminationReason = "RepairFailed"
	// TerminationAborted means the loop was stopped by a cancellation
	// request or a fatal storage error.
	TerminationAborted TerminationReason = "Aborted"
)

// Valid returns true if the reason is a terminal value.
func (r TerminationReason) Valid() bool {
	switch r {
	case TerminationPassedGate, TerminationMaxIterations, TerminationGenerationFailed,
		TerminationRepairFailed, TerminationAborted:
		return true
	default:
		return false
	}
}

// EvolutionSession is the full history of one generate-analyze-repair run.
type EvolutionSession struct {
	// ID is the unique identifier for this session.
	ID string `json:"id" yaml:"id"`
	// Prompt is the natural-language prompt.
	Prompt string `json:"prompt" yaml:"prompt"`
	// Language is the target language.
	Language Language `json:"language" yaml:"language"`
	// Artifacts is the version chain, indexed by iteration.
	Artifacts []Artifact `json:"artifacts" yaml:"artifacts"`
	// Reports holds the report for each analyzed artifact, same order.
	Reports []AnalysisReport `json:"reports" yaml:"reports"`
	// Verdicts holds the gate verdict for each report.
	Verdicts []bool `json:"verdicts" yaml:"verdicts"`
	// Termination is why the loop stopped.
	Termination TerminationReason `json:"termination" yaml:"termination"`
	// Error carries the generation/repair/storage error text, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// OutputDir is where the session's records are stored.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	// FinishedAt is when the session terminated.
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Final returns the last artifact in the chain, if any.
func (s *EvolutionSession) Final() (Artifact, bool) {
	if len(s.Artifacts) == 0 {
		return Artifact{}, false
	}
	return s.Artifacts[len(s.Artifacts)-1], true
}

// LastReport returns the most recent analysis report, if any.
func (s *EvolutionSession) LastReport() (AnalysisReport, bool) {
	if len(s.Reports) == 0 {
		return AnalysisReport{}, false
	}
	return s.Reports[len(s.Reports)-1], true
}

// Passed returns true if the session ended at the quality gate.
func (s *EvolutionSession) Passed() bool {
	return s.Termination == TerminationPassedGate
}

// Repairs returns the number of repair steps that produced an artifact.
func (s *EvolutionSession) Repairs() int {
	if len(s.Artifacts) == 0 {
		return 0
	}
	return len(s.Artifacts) - 1
}

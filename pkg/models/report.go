package models

import (
	"encoding/json"
	"time"
)

// AnalysisFinding is the captured outcome of one analyzer invocation.
type AnalysisFinding struct {
	// Tool is the analyzer name from the descriptor table.
	Tool string `json:"tool" yaml:"tool"`
	// ExitCode is the process exit status, or a synthetic non-zero status
	// when the process timed out or could not be launched.
	ExitCode int `json:"exit_code" yaml:"exit_code"`
	// Stdout is the captured standard output.
	Stdout string `json:"stdout" yaml:"stdout"`
	// Stderr is the captured standard error, plus any launch error text.
	Stderr string `json:"stderr" yaml:"stderr"`
	// Duration is the wall-clock time of the invocation.
	Duration time.Duration `json:"duration" yaml:"duration"`
	// TimedOut is set when the invocation exceeded its timeout.
	TimedOut bool `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	// LaunchFailed is set when the executable could not be started.
	LaunchFailed bool `json:"launch_failed,omitempty" yaml:"launch_failed,omitempty"`
}

// OK returns true if the analyzer exited with status 0.
func (f AnalysisFinding) OK() bool {
	return f.ExitCode == 0
}

// AnalysisReport holds one finding per configured analyzer, in
// configuration order. Reports are built once by the aggregator and then
// treated as read-only.
type AnalysisReport struct {
	findings []AnalysisFinding
}

// NewAnalysisReport builds a report from findings in the given order.
// The slice is copied.
func NewAnalysisReport(findings []AnalysisFinding) AnalysisReport {
	cp := make([]AnalysisFinding, len(findings))
	copy(cp, findings)
	return AnalysisReport{findings: cp}
}

// Findings returns a copy of the findings in configuration order.
func (r AnalysisReport) Findings() []AnalysisFinding {
	cp := make([]AnalysisFinding, len(r.findings))
	copy(cp, r.findings)
	return cp
}

// Len returns the number of findings.
func (r AnalysisReport) Len() int {
	return len(r.findings)
}

// Tools returns the analyzer names in configuration order.
func (r AnalysisReport) Tools() []string {
	names := make([]string, 0, len(r.findings))
	for _, f := range r.findings {
		names = append(names, f.Tool)
	}
	return names
}

// Finding looks up the finding for a tool by name.
func (r AnalysisReport) Finding(tool string) (AnalysisFinding, bool) {
	for _, f := range r.findings {
		if f.Tool == tool {
			return f, true
		}
	}
	return AnalysisFinding{}, false
}

// Failing returns the names of the tools whose exit status is non-zero.
func (r AnalysisReport) Failing() []string {
	var names []string
	for _, f := range r.findings {
		if !f.OK() {
			names = append(names, f.Tool)
		}
	}
	return names
}

// MarshalJSON encodes the report as an ordered array of findings.
func (r AnalysisReport) MarshalJSON() ([]byte, error) {
	if r.findings == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.findings)
}

// UnmarshalJSON decodes a report previously written by MarshalJSON.
func (r *AnalysisReport) UnmarshalJSON(data []byte) error {
	var findings []AnalysisFinding
	if err := json.Unmarshal(data, &findings); err != nil {
		return err
	}
	r.findings = findings
	return nil
}

// MarshalYAML encodes the report as an ordered list of findings.
func (r AnalysisReport) MarshalYAML() (interface{}, error) {
	return r.Findings(), nil
}

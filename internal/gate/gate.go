// Package gate decides whether an analysis report is acceptable.
package gate

import "github.com/ShayCichocki/arifi/pkg/models"

// Passes returns true iff every finding in the report exited with status 0.
// An empty report passes.
func Passes(report models.AnalysisReport) bool {
	for _, f := range report.Findings() {
		if !f.OK() {
			return false
		}
	}
	return true
}

// Failing returns the tools whose findings caused the gate to fail, in
// report order.
func Failing(report models.AnalysisReport) []string {
	return report.Failing()
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisReport_PreservesOrder(t *testing.T) {
	in := []AnalysisFinding{
		{Tool: "flake8", ExitCode: 1},
		{Tool: "mypy", ExitCode: 0},
		{Tool: "radon", ExitCode: 0},
	}
	report := NewAnalysisReport(in)

	assert.Equal(t, []string{"flake8", "mypy", "radon"}, report.Tools())
	assert.Equal(t, []string{"flake8"}, report.Failing())

	f, ok := report.Finding("mypy")
	require.True(t, ok)
	assert.True(t, f.OK())

	_, ok = report.Finding("eslint")
	assert.False(t, ok)
}

func TestAnalysisReport_IsolatedFromCallerSlices(t *testing.T) {
	in := []AnalysisFinding{{Tool: "eslint", ExitCode: 0}}
	report := NewAnalysisReport(in)

	in[0].ExitCode = 2
	out := report.Findings()
	out[0].ExitCode = 3

	f, _ := report.Finding("eslint")
	assert.Equal(t, 0, f.ExitCode)
}

func TestAnalysisReport_JSONIsOrderedArray(t *testing.T) {
	report := NewAnalysisReport([]AnalysisFinding{
		{Tool: "b", ExitCode: 1, Stderr: "boom"},
		{Tool: "a", ExitCode: 0},
	})

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "b", raw[0]["tool"])
	assert.Equal(t, "a", raw[1]["tool"])

	var decoded AnalysisReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Tools(), decoded.Tools())

	empty, err := json.Marshal(AnalysisReport{})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(empty))
}

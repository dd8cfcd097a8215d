package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/arifi/pkg/models"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("invalid format %q: expected text, json or yaml", format)
	}
}

// iterationSummary is one row of the session summary.
type iterationSummary struct {
	Iteration int                   `json:"iteration" yaml:"iteration"`
	Source    models.ArtifactSource `json:"source" yaml:"source"`
	Path      string                `json:"path" yaml:"path"`
	Analyzed  bool                  `json:"analyzed" yaml:"analyzed"`
	Passed    bool                  `json:"passed" yaml:"passed"`
	Failing   []string              `json:"failing,omitempty" yaml:"failing,omitempty"`
}

// sessionSummary is the printed result of a run.
type sessionSummary struct {
	SessionID     string                   `json:"session_id" yaml:"session_id"`
	Language      models.Language          `json:"language" yaml:"language"`
	Termination   models.TerminationReason `json:"termination" yaml:"termination"`
	Error         string                   `json:"error,omitempty" yaml:"error,omitempty"`
	OutputDir     string                   `json:"output_dir" yaml:"output_dir"`
	FinalArtifact string                   `json:"final_artifact,omitempty" yaml:"final_artifact,omitempty"`
	Duration      string                   `json:"duration" yaml:"duration"`
	Iterations    []iterationSummary       `json:"iterations" yaml:"iterations"`
	FinalReport   *models.AnalysisReport   `json:"final_report,omitempty" yaml:"final_report,omitempty"`
}

func summarize(sess *models.EvolutionSession) sessionSummary {
	s := sessionSummary{
		SessionID:   sess.ID,
		Language:    sess.Language,
		Termination: sess.Termination,
		Error:       sess.Error,
		OutputDir:   sess.OutputDir,
		Duration:    sess.FinishedAt.Sub(sess.StartedAt).Round(time.Millisecond).String(),
		Iterations:  make([]iterationSummary, 0, len(sess.Artifacts)),
	}
	if final, ok := sess.Final(); ok {
		s.FinalArtifact = final.Path
	}
	if report, ok := sess.LastReport(); ok {
		s.FinalReport = &report
	}
	for _, a := range sess.Artifacts {
		row := iterationSummary{
			Iteration: a.Iteration,
			Source:    a.Provenance.Source,
			Path:      a.Path,
		}
		if a.Iteration < len(sess.Verdicts) {
			row.Analyzed = true
			row.Passed = sess.Verdicts[a.Iteration]
			row.Failing = sess.Reports[a.Iteration].Failing()
		}
		s.Iterations = append(s.Iterations, row)
	}
	return s
}

// render writes the session result in the requested format.
func render(w io.Writer, format string, sess *models.EvolutionSession) error {
	summary := summarize(sess)
	switch format {
	case formatJSON:
		return writeJSON(w, summary)
	case formatYAML:
		return writeYAML(w, summary)
	default:
		return renderText(w, summary)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(13)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func renderText(w io.Writer, s sessionSummary) error {
	lines := []string{
		titleStyle.Render("arifi session " + s.SessionID),
		field("termination", terminationString(s.Termination)),
		field("language", string(s.Language)),
		field("iterations", fmt.Sprintf("%d", len(s.Iterations))),
		field("duration", s.Duration),
		field("output", s.OutputDir),
	}
	if s.FinalArtifact != "" {
		lines = append(lines, field("final", s.FinalArtifact))
	}
	if s.Error != "" {
		lines = append(lines, field("error", color.RedString(s.Error)))
	}
	if len(s.Iterations) > 0 {
		lines = append(lines, "")
		for _, it := range s.Iterations {
			lines = append(lines, iterationLine(it))
		}
	}
	fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

	if s.FinalReport != nil {
		fmt.Fprintln(w, "Final analysis:")
		data, err := json.MarshalIndent(s.FinalReport, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

func iterationLine(it iterationSummary) string {
	verdict := color.New(color.Faint).Sprint("not analyzed")
	switch {
	case it.Passed:
		verdict = color.GreenString("passed")
	case it.Analyzed:
		verdict = color.RedString("failed: " + strings.Join(it.Failing, ", "))
	}
	return fmt.Sprintf("v%03d  %-9s %s", it.Iteration, it.Source, verdict)
}

func terminationString(t models.TerminationReason) string {
	switch t {
	case models.TerminationPassedGate:
		return color.GreenString(string(t))
	case models.TerminationMaxIterations:
		return color.YellowString(string(t))
	default:
		return color.RedString(string(t))
	}
}

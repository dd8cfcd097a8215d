package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/arifi/internal/evolution"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// progress prints one line per loop transition.
type progress struct {
	w    io.Writer
	info models.ProviderInfo
}

func newProgress(w io.Writer, info models.ProviderInfo) *progress {
	return &progress{w: w, info: info}
}

func (p *progress) observe(s evolution.State, sess *models.EvolutionSession) {
	switch s {
	case evolution.StateInit:
		fmt.Fprintf(p.w, "%s session %s (%s, %s/%s)\n",
			color.CyanString("●"), sess.ID, sess.Language, p.info.Name, p.info.Model)
	case evolution.StateGenerated:
		a, _ := sess.Final()
		how := "generated"
		if a.Provenance.Parent != nil {
			how = fmt.Sprintf("repaired from v%03d", *a.Provenance.Parent)
		}
		fmt.Fprintf(p.w, "  v%03d %s\n", a.Iteration, how)
	case evolution.StateAnalyzed:
		report, _ := sess.LastReport()
		if failing := report.Failing(); len(failing) > 0 {
			fmt.Fprintf(p.w, "  %s failing: %s\n", color.RedString("✗"), strings.Join(failing, ", "))
		} else {
			fmt.Fprintf(p.w, "  %s all analyzers passed\n", color.GreenString("✓"))
		}
	case evolution.StateRepairing:
		a, _ := sess.Final()
		fmt.Fprintf(p.w, "  %s repairing v%03d\n", color.YellowString("↻"), a.Iteration)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/arifi/internal/state"
	"github.com/ShayCichocki/arifi/internal/store"
	"github.com/ShayCichocki/arifi/pkg/models"
)

func newHistoryCmd() *cobra.Command {
	var (
		format string
		limit  int
		status string
	)

	list := func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(format); err != nil {
			return err
		}
		db, err := openHistory(cmd.OutOrStdout())
		if err != nil || db == nil {
			return err
		}
		defer db.Close()

		var filter *state.SessionStatus
		if status != "" {
			s := state.SessionStatus(status)
			filter = &s
		}
		sessions, err := db.ListSessions(filter, limit)
		if err != nil {
			return err
		}
		return renderSessions(cmd.OutOrStdout(), format, sessions)
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and inspect past sessions",
		Long: `List past sessions recorded in the session index, newest first.

Use 'arifi history show <session-id>' to inspect one session. A unique
prefix of the session ID is enough.`,
		Args: cobra.NoArgs,
		RunE: list,
	}
	cmd.PersistentFlags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list (0 for all)")
	cmd.Flags().StringVar(&status, "status", "", "Only list sessions with this status: running, finished or interrupted")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List past sessions",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	listCmd.Flags().AddFlagSet(cmd.Flags())

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its iterations and final report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			db, err := openHistory(cmd.OutOrStdout())
			if err != nil || db == nil {
				return err
			}
			defer db.Close()
			return showSession(cmd.OutOrStdout(), db, args[0], format)
		},
	}

	var olderThan time.Duration
	var remove bool
	purgeCmd := &cobra.Command{
		Use:   "purge [session-id]",
		Short: "Remove sessions from the index",
		Long: `Remove index entries older than --older-than, or a single session when an
ID is given. Stored records under the output directory are kept unless
--remove-files is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd.OutOrStdout())
			if err != nil || db == nil {
				return err
			}
			defer db.Close()

			if len(args) == 1 {
				return purgeSession(cmd.OutOrStdout(), db, args[0], remove)
			}
			n, err := db.PurgeOldSessions(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d session(s)\n", n)
			return nil
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Purge sessions started before this age")
	purgeCmd.Flags().BoolVar(&remove, "remove-files", false, "Also delete the session directory (single session only)")

	cmd.AddCommand(listCmd, showCmd, purgeCmd)
	return cmd
}

// openHistory opens the session index, or returns nil after printing a
// hint when nothing has been recorded yet.
func openHistory(w io.Writer) (*state.DB, error) {
	if _, err := os.Stat(state.DefaultDBPath()); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(w, "No sessions recorded yet. Run 'arifi run <prompt-file>' to start.")
		return nil, nil
	}
	db, err := state.OpenDefault()
	if err != nil {
		return nil, fmt.Errorf("open session index: %w", err)
	}
	return db, nil
}

func renderSessions(w io.Writer, format string, sessions []state.Session) error {
	switch format {
	case formatJSON:
		return writeJSON(w, sessions)
	case formatYAML:
		return writeYAML(w, sessions)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-11s  %-20s  %-10s  %4s  %s\n",
		"SESSION", "STATUS", "TERMINATION", "LANGUAGE", "ITER", "STARTED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-36s  %-11s  %-20s  %-10s  %4d  %s\n",
			s.ID, s.Status, s.Termination, s.Language, s.Iterations,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// sessionDetail is the show output: the index row, its artifacts, and
// the report of the final iteration read back from the store.
type sessionDetail struct {
	Session     *state.Session         `json:"session" yaml:"session"`
	Artifacts   []state.ArtifactRow    `json:"artifacts" yaml:"artifacts"`
	FinalReport *models.AnalysisReport `json:"final_report,omitempty" yaml:"final_report,omitempty"`
	StoreError  string                 `json:"store_error,omitempty" yaml:"store_error,omitempty"`
}

func showSession(w io.Writer, db *state.DB, prefix, format string) error {
	sess, err := db.FindSession(prefix)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("no session matching %q", prefix)
	}
	rows, err := db.ListArtifacts(sess.ID)
	if err != nil {
		return err
	}

	detail := sessionDetail{Session: sess, Artifacts: rows}
	if sess.OutputDir != "" {
		snap, err := store.Load(sess.OutputDir)
		if err != nil {
			detail.StoreError = err.Error()
		} else if len(snap.Artifacts) > 0 {
			last := snap.Artifacts[len(snap.Artifacts)-1].Iteration
			if report, ok := snap.Reports[last]; ok {
				detail.FinalReport = &report
			}
		}
	}

	switch format {
	case formatJSON:
		return writeJSON(w, detail)
	case formatYAML:
		return writeYAML(w, detail)
	}

	fmt.Fprintf(w, "Session:     %s\n", sess.ID)
	fmt.Fprintf(w, "Status:      %s\n", sess.Status)
	fmt.Fprintf(w, "Termination: %s\n", terminationString(sess.Termination))
	fmt.Fprintf(w, "Language:    %s\n", sess.Language)
	fmt.Fprintf(w, "Provider:    %s (%s)\n", sess.Provider, sess.Model)
	fmt.Fprintf(w, "Output:      %s\n", sess.OutputDir)
	fmt.Fprintf(w, "Started:     %s\n", sess.StartedAt.Local().Format(time.RFC3339))
	if sess.FinishedAt != nil {
		fmt.Fprintf(w, "Duration:    %s\n", sess.FinishedAt.Sub(sess.StartedAt).Round(time.Millisecond))
	}
	if sess.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", color.RedString(sess.Error))
	}
	fmt.Fprintf(w, "Prompt:      %s\n", firstLine(sess.Prompt))

	if len(rows) > 0 {
		fmt.Fprintln(w)
		for _, r := range rows {
			fmt.Fprintln(w, iterationLine(iterationSummary{
				Iteration: r.Iteration,
				Source:    r.Source,
				Path:      r.Path,
				Analyzed:  r.Analyzed,
				Passed:    r.Passed,
				Failing:   r.FailingTools,
			}))
		}
	}

	if detail.StoreError != "" {
		fmt.Fprintf(w, "\nStored records unavailable: %s\n", detail.StoreError)
	}
	if detail.FinalReport != nil {
		fmt.Fprintln(w, "\nFinal analysis:")
		return writeJSON(w, detail.FinalReport)
	}
	return nil
}

func purgeSession(w io.Writer, db *state.DB, prefix string, removeFiles bool) error {
	sess, err := db.FindSession(prefix)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("no session matching %q", prefix)
	}
	if err := db.DeleteSession(sess.ID); err != nil {
		return err
	}
	if removeFiles && sess.OutputDir != "" {
		if err := os.RemoveAll(sess.OutputDir); err != nil {
			return fmt.Errorf("remove %s: %w", sess.OutputDir, err)
		}
	}
	fmt.Fprintf(w, "Purged session %s\n", sess.ID)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

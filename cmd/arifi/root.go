package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	root := &rootOptions{}
	run := &runOptions{}

	cmd := &cobra.Command{
		Use:   "arifi [prompt-file]",
		Short: "Generate, analyze and repair code until it passes static analysis",
		Long: `arifi sends a natural-language prompt to a code-generation model, runs the
result through the static analyzers configured for its language, and feeds
failing reports back to the model for repair until every analyzer passes or
the iteration budget is spent.

Every iteration is stored under <output>/<session-id>/ as an immutable
record: v000.py, v000.py.meta.json and v000.report.json, and so on.

With a prompt file argument, arifi behaves like 'arifi run <prompt-file>'.

Without ANTHROPIC_API_KEY, OPENAI_API_KEY or Bedrock credentials a
deterministic stub generator is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runPrompt(cmd, root, run, args[0])
		},
	}

	cmd.PersistentFlags().StringVar(&root.configFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/arifi/config.yaml)")
	cmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	addRunFlags(cmd, run)

	cmd.AddCommand(newRunCmd(root))
	cmd.AddCommand(newWatchCmd(root))
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd(root))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

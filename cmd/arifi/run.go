package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/arifi/internal/config"
	"github.com/ShayCichocki/arifi/internal/prompt"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// runOptions holds the flags of run, watch and the root command.
type runOptions struct {
	language        string
	provider        string
	model           string
	maxIterations   int
	maxRetries      int
	analyzerTimeout time.Duration
	output          string
	format          string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <prompt-file>",
		Short: "Run one evolution session for a prompt file",
		Long: `Run one generate, analyze and repair session for the prompt in <prompt-file>.

The target language is detected from the prompt (javascript/js/.js,
typescript/ts, otherwise python) unless --language is given.

Exit status is 1 when the prompt file is missing, the initial generation
fails or a record cannot be stored. Otherwise it is 0, whether or not the
final artifact passed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(cmd, root, o, args[0])
		},
	}
	addRunFlags(cmd, o)
	return cmd
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.language, "language", "l", "", "Target language: python, javascript, typescript or text (default: detected)")
	f.StringVar(&o.provider, "provider", "", "Generation provider: auto, anthropic, openai or stub")
	f.StringVar(&o.model, "model", "", "Model identifier (default: provider default)")
	f.IntVar(&o.maxIterations, "max-iterations", 0, "Maximum number of repair iterations")
	f.IntVar(&o.maxRetries, "max-retries", 0, "Retries per generation call on transient errors")
	f.DurationVar(&o.analyzerTimeout, "analyzer-timeout", 0, "Timeout for each analyzer invocation")
	f.StringVarP(&o.output, "output", "o", "", "Directory for session records")
	f.StringVarP(&o.format, "format", "f", formatText, "Report format: text, json or yaml")
}

// apply copies the flags set on cmd onto cfg.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if err := checkFormat(o.format); err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.Generation.Provider = o.provider
	}
	if f.Changed("model") {
		cfg.Generation.Model = o.model
	}
	if f.Changed("max-iterations") {
		cfg.Evolution.MaxIterations = o.maxIterations
	}
	if f.Changed("max-retries") {
		cfg.Generation.MaxRetries = o.maxRetries
	}
	if f.Changed("analyzer-timeout") {
		cfg.Analysis.Timeout = o.analyzerTimeout
	}
	if f.Changed("output") {
		cfg.Output.Dir = o.output
	}
	return cfg.Validate()
}

// loadConfig loads the layered configuration and applies root flags.
func loadConfig(root *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(root.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if root.logLevel != "" {
		cfg.Logging.Level = root.logLevel
	}
	return cfg, nil
}

func runPrompt(cmd *cobra.Command, root *rootOptions, o *runOptions, path string) error {
	text, err := prompt.Load(path)
	if err != nil {
		return err
	}
	lang, err := prompt.Resolve(text, o.language)
	if err != nil {
		return err
	}

	env, err := newRunEnv(cmd, root, o)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := env.evolve(ctx, text, lang)
	if sess != nil {
		if rerr := render(cmd.OutOrStdout(), o.format, sess); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil {
		return err
	}
	return exitStatus(sess)
}

// exitStatus maps a finished session to the command error. Only a failed
// initial generation is an error; every other outcome exits 0.
func exitStatus(sess *models.EvolutionSession) error {
	if sess.Termination == models.TerminationGenerationFailed {
		return fmt.Errorf("initial generation failed: %s", sess.Error)
	}
	return nil
}


package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/arifi/internal/prompt"
)

// defaultDebounce coalesces the bursts of events editors emit on save.
const defaultDebounce = 300 * time.Millisecond

func newWatchCmd(root *rootOptions) *cobra.Command {
	o := &runOptions{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <prompt-file>",
		Short: "Re-run a session every time the prompt file changes",
		Long: `Run a session for <prompt-file>, then watch the file and start a new
session each time it is written. Each run gets its own session directory.

Stop with Ctrl-C. A session in progress is aborted at its next step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchPrompt(ctx, cmd, root, o, args[0], debounce)
		},
	}
	addRunFlags(cmd, o)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "Quiet period after a change before re-running")
	return cmd
}

func watchPrompt(ctx context.Context, cmd *cobra.Command, root *rootOptions, o *runOptions, path string, debounce time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve prompt path: %w", err)
	}
	if _, err := prompt.Load(abs); err != nil {
		return err
	}

	env, err := newRunEnv(cmd, root, o)
	if err != nil {
		return err
	}
	defer env.Close()

	runOnce := func() error {
		text, err := prompt.Load(abs)
		if err != nil {
			// Editors that replace the file can leave it briefly missing.
			env.logger.Warn("prompt unreadable, waiting for next change", zap.Error(err))
			return nil
		}
		lang, err := prompt.Resolve(text, o.language)
		if err != nil {
			return err
		}
		sess, err := env.evolve(ctx, text, lang)
		if sess != nil {
			if rerr := render(cmd.OutOrStdout(), o.format, sess); rerr != nil {
				env.logger.Warn("rendering session", zap.Error(rerr))
			}
		}
		return err
	}

	if err := runOnce(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic replace-on-save is seen too.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", abs)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			env.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			if err := runOnce(); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

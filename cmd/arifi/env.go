package main

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/arifi/internal/analysis"
	"github.com/ShayCichocki/arifi/internal/config"
	"github.com/ShayCichocki/arifi/internal/evolution"
	"github.com/ShayCichocki/arifi/internal/exec"
	"github.com/ShayCichocki/arifi/internal/generation"
	"github.com/ShayCichocki/arifi/internal/logging"
	"github.com/ShayCichocki/arifi/internal/state"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// runEnv is everything a session needs that outlives a single run.
type runEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	index    *state.DB
	progress io.Writer
}

func newRunEnv(cmd *cobra.Command, root *rootOptions, o *runOptions) (*runEnv, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	if err := o.apply(cmd, cfg); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	return &runEnv{
		cfg:      cfg,
		logger:   logger,
		index:    openIndex(logger),
		progress: cmd.ErrOrStderr(),
	}, nil
}

// newLogger builds the process logger. The file core defaults to
// <output.dir>/logs/arifi.log.
func newLogger(cfg *config.Config) *zap.Logger {
	lc := cfg.Logging
	if lc.File == "" {
		lc.File = filepath.Join(cfg.Output.Dir, "logs", "arifi.log")
	}
	return logging.NewStderr(lc)
}

// openIndex opens the session index and marks sessions left running by
// dead processes as interrupted. A missing index is not fatal.
func openIndex(logger *zap.Logger) *state.DB {
	db, err := state.OpenDefault()
	if err != nil {
		logger.Warn("session index unavailable", zap.Error(err))
		return nil
	}

	n, err := state.NewRecoveryManager(db).MarkInterrupted()
	if err != nil {
		logger.Warn("checking for interrupted sessions", zap.Error(err))
	} else if n > 0 {
		logger.Info("marked interrupted sessions", zap.Int("count", n))
	}
	return db
}

func (e *runEnv) Close() {
	if e.index != nil {
		e.index.Close()
	}
	_ = e.logger.Sync()
}

// evolve runs one session and records it in the index.
func (e *runEnv) evolve(ctx context.Context, text string, lang models.Language) (*models.EvolutionSession, error) {
	gen := generation.NewFromConfig(e.cfg, e.logger)
	agg := analysis.NewFromConfig(e.cfg.Analysis, exec.NewRunner(), e.logger)
	info := gen.Info()
	printer := newProgress(e.progress, info)

	ctrl := evolution.NewController(gen, agg, e.cfg.Output.Dir,
		evolution.WithMaxIterations(e.cfg.Evolution.MaxIterations),
		evolution.WithLogger(e.logger),
		evolution.OnTransition(func(s evolution.State, sess *models.EvolutionSession) {
			printer.observe(s, sess)
			if s == evolution.StateInit && e.index != nil {
				if err := e.index.StartSession(sess, info); err != nil {
					e.logger.Warn("indexing session start", zap.Error(err))
				}
			}
		}),
	)

	e.logger.Info("starting session",
		zap.String("language", string(lang)),
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.Int("max_iterations", ctrl.MaxIterations()),
	)

	sess, err := ctrl.Run(ctx, text, lang)
	if sess != nil && e.index != nil {
		if ierr := e.index.RecordSession(sess, info); ierr != nil {
			e.logger.Warn("indexing session", zap.Error(ierr))
		}
	}
	return sess, err
}

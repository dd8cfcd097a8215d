// Package logging builds the structured logger used across arifi.
//
// Console output goes to the supplied writer (stderr in the CLI) so that
// machine-readable results on stdout stay clean. When a log file is
// configured, a JSON core backed by lumberjack rotation is teed alongside.
package logging

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ShayCichocki/arifi/internal/config"
)

// New returns a logger configured from cfg, writing console output to w.
// An unknown level falls back to info.
func New(cfg config.LoggingConfig, w zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Format), w, level),
	}

	if cfg.File != "" {
		// File output is always JSON.
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("arifi")
}

// NewStderr is New with console output on a locked stderr.
func NewStderr(cfg config.LoggingConfig) *zap.Logger {
	return New(cfg, zapcore.Lock(os.Stderr))
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(ec)
	}

	// Colored levels follow fatih/color's terminal and NO_COLOR detection.
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if !color.NoColor {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.ConsoleSeparator = "  "
	return zapcore.NewConsoleEncoder(ec)
}

// Package logging builds the zap logger used by qtgen.
package logging

import (
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"qtgen/internal/config"
)

// Options configures New.
type Options struct {
	config.LoggingConfig

	// Console receives human-readable log lines. Defaults to os.Stderr.
	Console io.Writer
}

// New returns a logger writing console-encoded lines to opts.Console and,
// when opts.File is set, JSON lines to a rotating file. The returned close
// function flushes the logger and closes the file.
func New(opts Options) (*zap.Logger, func() error) {
	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	encCfg := cfg.EncoderConfig
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(console)), cfg.Level),
	}

	var file *lumberjack.Logger
	if opts.File != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), cfg.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(zapcore.AddSync(console)))
	closeFn := func() error {
		// Sync on a terminal or pipe can fail with EINVAL; that is not worth
		// reporting.
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closeFn
}

// CloseQuietly runs closeFn and drops os.ErrClosed.
func CloseQuietly(closeFn func() error) error {
	if closeFn == nil {
		return nil
	}
	if err := closeFn(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

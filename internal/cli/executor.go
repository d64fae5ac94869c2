package cli

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"qtgen/internal/driver"
	"qtgen/internal/fsys"
	"qtgen/internal/logging"
	"qtgen/internal/proc"
	"qtgen/internal/report"
	"qtgen/internal/tool"
	"qtgen/internal/trace"
	"qtgen/internal/watch"
)

type CLIResult struct {
	ExitCode int

	// Report is the outcome of the last completed run.
	Report *report.Report

	// TraceHash is the hash of the last written trace, if any.
	TraceHash string
}

// Execute runs inv, printing the report to stdout and logs to stderr.
//
// Per-file failures produce ExitFileErrors with a full report. Setup
// failures return an error and no report.
func Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError

	logger, closeLog := logging.New(logging.Options{LoggingConfig: inv.Logging, Console: stderr})
	defer func() {
		if err := logging.CloseQuietly(closeLog); err != nil && execErr == nil {
			fmt.Fprintf(stderr, "warning: closing log: %v\n", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during run", zap.Any("panic", r), zap.Stack("stack"))
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	ig, err := fsys.LoadIgnore(inv.InputDir, inv.Ignore)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	fs := fsys.Local{Ignore: ig}

	tools, err := tool.NewSet(tool.Options{
		FS:             fs,
		Runner:         &proc.Shell{Timeout: inv.Timeout},
		Logger:         logger,
		ToolchainBin:   inv.ToolchainBin,
		MocArgs:        inv.MocOptions,
		UicArgs:        inv.UicOptions,
		RccArgs:        inv.RccOptions,
		IgnoreExitCode: inv.IgnoreExitCode,
	})
	if err != nil {
		return res, err
	}

	runOnce := func(ctx context.Context) error {
		rec := trace.NewRecorder()
		rep, err := driver.Run(ctx, driver.Config{
			InputDir:  inv.InputDir,
			OutputDir: inv.OutputDir,
			Tools:     tools,
			FS:        fs,
			Logger:    logger,
			Sink:      rec,
		})
		if err != nil {
			return err
		}
		res.Report = rep
		if err := printReport(stdout, rep, inv.JSON); err != nil {
			return fmt.Errorf("print report: %w", err)
		}
		if inv.Trace.Enabled {
			hash, err := trace.WriteFile(inv.Trace.Path, rec.Trace(inv.InputDir, inv.OutputDir))
			if err != nil {
				return err
			}
			res.TraceHash = hash
			logger.Debug("trace written", zap.String("path", inv.Trace.Path), zap.String("hash", hash))
		}
		return nil
	}

	if err := runOnce(ctx); err != nil {
		res.ExitCode = ExitCode(err)
		return res, err
	}

	if inv.Watch {
		err := watch.Watch(ctx, watch.Options{
			Root:      inv.InputDir,
			OutputDir: inv.OutputDir,
			Ignore:    ig,
			Logger:    logger,
		}, runOnce)
		if err != nil {
			res.ExitCode = ExitInternalError
			return res, err
		}
	}

	res.ExitCode = exitCodeForReport(res.Report)
	return res, nil
}

func printReport(w io.Writer, rep *report.Report, asJSON bool) error {
	if asJSON {
		return rep.WriteJSON(w)
	}
	return rep.WriteText(w)
}

func exitCodeForReport(rep *report.Report) int {
	if rep == nil {
		return ExitInternalError
	}
	if rep.HasErrors() {
		return ExitFileErrors
	}
	return ExitSuccess
}

// Package tool describes the Qt code generators driven by qtgen.
//
// A Tool is a record of functions rather than an interface hierarchy: the
// driver scans a Set in priority order and hands each input file to the
// first Tool whose IsInput accepts it.
package tool

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"qtgen/internal/fsys"
	"qtgen/internal/proc"
	"qtgen/internal/stale"
)

// Kind names a generator.
type Kind string

const (
	KindMoc Kind = "moc"
	KindUic Kind = "uic"
	KindRcc Kind = "rcc"
)

// Tool is the immutable per-run configuration of one generator.
type Tool struct {
	Kind Kind

	// Executable is the resolved program path, already quoted as one shell
	// word.
	Executable string

	// ExtraArgs is inserted verbatim between the executable and -o.
	ExtraArgs string

	// IsInput reports whether path is an input for this tool.
	IsInput func(path string) bool

	// OutputName maps an input base name to the generated file name.
	OutputName func(filename string) string

	// NeedsRegeneration decides whether out is stale relative to in.
	NeedsRegeneration func(in, out string) bool

	runner         proc.Runner
	ignoreExitCode bool
	logger         *zap.Logger
}

// CommandLine composes `<exe> [extraArgs] -o <out> <in>`. Both paths are
// quoted for the platform shell so that no character in a file name is
// interpreted by it.
func (t *Tool) CommandLine(in, out string) string {
	var b strings.Builder
	b.WriteString(t.Executable)
	if extra := strings.TrimSpace(t.ExtraArgs); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteString(" -o ")
	b.WriteString(proc.QuoteArg(out))
	b.WriteByte(' ')
	b.WriteString(proc.QuoteArg(in))
	return b.String()
}

// Invoke runs the generator for in, writing out. It blocks until the
// generator exits.
//
// Launch failures are returned as *proc.LaunchError. A non-zero exit is
// returned as *proc.ExitError unless the tool was built with
// IgnoreExitCode.
func (t *Tool) Invoke(ctx context.Context, in, out string) error {
	if t.runner == nil {
		return errors.New("tool has no process runner")
	}
	line := t.CommandLine(in, out)
	t.logger.Debug("invoking generator", zap.String("tool", string(t.Kind)), zap.String("command", line))

	res, err := t.runner.Run(ctx, line)
	if err != nil {
		return err
	}
	if len(res.Stdout) > 0 {
		t.logger.Debug("generator output", zap.String("tool", string(t.Kind)), zap.ByteString("stdout", res.Stdout))
	}
	if res.ExitCode != 0 {
		if t.ignoreExitCode {
			t.logger.Warn("generator exited non-zero, ignoring",
				zap.String("tool", string(t.Kind)), zap.Int("exit_code", res.ExitCode), zap.ByteString("stderr", res.Stderr))
			return nil
		}
		t.logger.Warn("generator failed",
			zap.String("tool", string(t.Kind)), zap.Int("exit_code", res.ExitCode), zap.ByteString("stderr", res.Stderr))
		return &proc.ExitError{Command: line, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}

// Options configures NewSet.
type Options struct {
	FS     fsys.FS
	Runner proc.Runner
	Logger *zap.Logger

	// ToolchainBin is the directory holding moc, uic and rcc.
	ToolchainBin string

	MocArgs string
	UicArgs string
	RccArgs string

	// IgnoreExitCode treats a generator that starts as successful whatever
	// its exit status.
	IgnoreExitCode bool

	// SniffCacheSize bounds the memo of header scans. Zero uses a default.
	SniffCacheSize int
}

// Set is the ordered list of tools tried against each input.
type Set []*Tool

// NewSet builds moc, uic and rcc, in that priority order.
func NewSet(opts Options) (Set, error) {
	if opts.FS == nil {
		return nil, errors.New("tool set: nil filesystem")
	}
	if opts.Runner == nil {
		return nil, errors.New("tool set: nil process runner")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	sniff, err := newSniffer(opts.FS, mocMarker, opts.SniffCacheSize)
	if err != nil {
		return nil, fmt.Errorf("tool set: %w", err)
	}
	oracle := stale.New(opts.FS)
	return Set{
		newMoc(opts, sniff, oracle),
		newUic(opts, oracle),
		newRcc(opts, oracle),
	}, nil
}

// Match returns the first tool accepting path, or nil.
func (s Set) Match(path string) *Tool {
	for _, t := range s {
		if t.IsInput(path) {
			return t
		}
	}
	return nil
}

// ResolveExecutable returns the platform path of program name inside bin,
// quoted as one shell word.
func ResolveExecutable(bin, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return proc.QuoteArg(filepath.Join(bin, name))
}

// splitExt strips the last extension from a file name.
func splitExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func newTool(kind Kind, opts Options, extra string) *Tool {
	return &Tool{
		Kind:           kind,
		Executable:     ResolveExecutable(opts.ToolchainBin, string(kind)),
		ExtraArgs:      extra,
		runner:         opts.Runner,
		ignoreExitCode: opts.IgnoreExitCode,
		logger:         opts.Logger,
	}
}

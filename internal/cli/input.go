package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"qtgen/internal/config"
	"qtgen/internal/driver"
)

const (
	ExitSuccess           = 0
	ExitFileErrors        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

type TraceConfig struct {
	Enabled bool
	Path    string
}

// Invocation is the fully resolved description of a run: config file,
// environment and flags already merged, paths cleaned and the toolchain
// located.
type Invocation struct {
	InputDir     string
	OutputDir    string
	ToolchainBin string

	MocOptions string
	UicOptions string
	RccOptions string

	Timeout        time.Duration
	Ignore         []string
	IgnoreExitCode bool

	Trace   TraceConfig
	JSON    bool
	Watch   bool
	Logging config.LoggingConfig
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// Environment is what ParseInvocation reads besides the arguments.
type Environment struct {
	Getenv   func(string) string
	LookPath func(string) (string, error)

	// IsDir validates the resolved toolchain directory. Defaults to os.Stat.
	IsDir func(string) bool

	// EnvFile is the dotenv file to load. Defaults to ".env".
	EnvFile string
}

func (e Environment) withDefaults() Environment {
	if e.Getenv == nil {
		e.Getenv = os.Getenv
	}
	if e.LookPath == nil {
		e.LookPath = exec.LookPath
	}
	if e.IsDir == nil {
		e.IsDir = func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.IsDir()
		}
	}
	return e
}

// flagValues mirrors the command-line flags before they are merged over the
// config file.
type flagValues struct {
	qt             string
	inputDir       string
	outputDir      string
	mocOpts        string
	uicOpts        string
	rccOpts        string
	configPath     string
	timeout        time.Duration
	trace          string
	json           bool
	watch          bool
	ignoreExitCode bool
	verbose        bool
	logFile        string
}

func bindFlags(cmd *cobra.Command, v *flagValues) {
	f := cmd.Flags()
	f.StringVar(&v.qt, "qt", "", "Qt installation root; generators are taken from its bin directory")
	f.StringVar(&v.inputDir, "inD", "", "input directory to scan (required)")
	f.StringVar(&v.outputDir, "outD", "", "output directory for generated files (required)")
	f.StringVar(&v.mocOpts, "mocOpts", "", "extra options passed to moc")
	f.StringVar(&v.uicOpts, "uicOpts", "", "extra options passed to uic")
	f.StringVar(&v.rccOpts, "rccOpts", "", "extra options passed to rcc")
	f.StringVar(&v.configPath, "config", "", "YAML config file (default "+config.DefaultFileName+" if present)")
	f.DurationVar(&v.timeout, "timeout", 0, "per-generator timeout, 0 for none")
	f.StringVar(&v.trace, "trace", "", "write the canonical run trace to this path")
	f.BoolVar(&v.json, "json", false, "print a JSON summary instead of the text report")
	f.BoolVar(&v.watch, "watch", false, "keep running and regenerate when inputs change")
	f.BoolVar(&v.ignoreExitCode, "ignore-exit-code", false, "treat generators that start as successful whatever their exit status")
	f.BoolVarP(&v.verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&v.logFile, "log-file", "", "also write JSON logs to this rotating file")
}

// ParseInvocation parses args into an Invocation the way the qtgen command
// does.
func ParseInvocation(args []string, env Environment) (Invocation, error) {
	var v flagValues
	cmd := &cobra.Command{Use: "qtgen"}
	bindFlags(cmd, &v)
	if err := cmd.ParseFlags(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if rest := cmd.Flags().Args(); len(rest) != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(rest, " "))
	}
	return resolveInvocation(cmd, &v, env)
}

func resolveInvocation(cmd *cobra.Command, v *flagValues, env Environment) (Invocation, error) {
	env = env.withDefaults()

	cfg, err := config.Load(config.Sources{ConfigPath: v.configPath, EnvFile: env.EnvFile, Getenv: env.Getenv})
	if err != nil {
		return Invocation{}, err
	}

	changed := cmd.Flags().Changed
	if changed("qt") {
		cfg.Qt = v.qt
	}
	if changed("inD") {
		cfg.InputDir = v.inputDir
	}
	if changed("outD") {
		cfg.OutputDir = v.outputDir
	}
	if changed("mocOpts") {
		cfg.Moc.Options = v.mocOpts
	}
	if changed("uicOpts") {
		cfg.Uic.Options = v.uicOpts
	}
	if changed("rccOpts") {
		cfg.Rcc.Options = v.rccOpts
	}
	if changed("timeout") {
		cfg.Timeout = v.timeout
	}
	if changed("trace") {
		cfg.Trace = v.trace
	}
	if changed("ignore-exit-code") {
		cfg.IgnoreExitCode = v.ignoreExitCode
	}
	if changed("verbose") {
		cfg.Logging.Verbose = v.verbose
	}
	if changed("log-file") {
		cfg.Logging.File = v.logFile
	}

	if err := cfg.Validate(); err != nil {
		return Invocation{}, err
	}
	bin, err := config.LocateToolchain(cfg.Qt, env.Getenv, env.LookPath, env.IsDir)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		InputDir:       filepath.Clean(cfg.InputDir),
		OutputDir:      filepath.Clean(cfg.OutputDir),
		ToolchainBin:   filepath.Clean(bin),
		MocOptions:     cfg.Moc.Options,
		UicOptions:     cfg.Uic.Options,
		RccOptions:     cfg.Rcc.Options,
		Timeout:        cfg.Timeout,
		Ignore:         cfg.Ignore,
		IgnoreExitCode: cfg.IgnoreExitCode,
		JSON:           v.json,
		Watch:          v.watch,
		Logging:        cfg.Logging,
	}
	if strings.TrimSpace(cfg.Trace) != "" {
		inv.Trace = TraceConfig{Enabled: true, Path: filepath.Clean(cfg.Trace)}
	}
	return inv, nil
}

// ExitCode maps an error to a semantic exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	var cfgErr *config.Error
	var drvErr *driver.ConfigurationError
	if errors.As(err, &cfgErr) || errors.As(err, &drvErr) {
		return ExitConfigError
	}
	return ExitInternalError
}

// Package config loads qtgen settings from defaults, an optional YAML file
// and the environment. Command-line flags are layered on top by the cli
// package.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is read from the working directory when no explicit
// config path is given.
const DefaultFileName = ".qtgen.yaml"

// Environment variables consulted by Load.
const (
	EnvQtRoot  = "QT5"
	EnvTimeout = "QTGEN_TIMEOUT"
)

// Config is the full set of run settings.
type Config struct {
	// Qt is the Qt installation root; generators live in its bin directory.
	Qt        string `yaml:"qt"`
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`

	Moc ToolConfig `yaml:"moc"`
	Uic ToolConfig `yaml:"uic"`
	Rcc ToolConfig `yaml:"rcc"`

	// Timeout bounds each generator invocation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// Ignore holds gitignore-style patterns relative to the input root.
	Ignore []string `yaml:"ignore"`

	IgnoreExitCode bool `yaml:"ignore_exit_code"`

	// Trace is a path to write the canonical run trace to.
	Trace string `yaml:"trace"`

	Logging LoggingConfig `yaml:"logging"`
}

// ToolConfig holds the per-generator settings.
type ToolConfig struct {
	Options string `yaml:"options"`
}

// LoggingConfig configures the logger and its optional rotating file.
type LoggingConfig struct {
	Verbose    bool   `yaml:"verbose"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Error is an invalid or unreadable setting.
type Error struct {
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Sources says where Load reads from.
type Sources struct {
	// ConfigPath is an explicit YAML file; it must exist. When empty,
	// DefaultFileName is used if present.
	ConfigPath string

	// EnvFile is loaded into the process environment without overriding
	// existing variables. Defaults to ".env"; a missing file is ignored.
	EnvFile string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a Config from defaults, the YAML file and the environment.
func Load(src Sources) (*Config, error) {
	cfg := Default()

	path := src.ConfigPath
	required := path != ""
	if !required {
		path = DefaultFileName
	}
	if err := cfg.loadFile(path, required); err != nil {
		return nil, err
	}

	envFile := src.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnvOverrides(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &Error{Field: "config", Message: "cannot read " + path, Cause: err}
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// An empty file decodes to io.EOF; keep the defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &Error{Field: "config", Message: "cannot parse " + path, Cause: err}
	}
	return nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Field: EnvTimeout, Message: "invalid duration " + v, Cause: err}
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the settings needed before a run starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return &Error{Field: "input_dir", Message: "input directory is required"}
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return &Error{Field: "output_dir", Message: "output directory is required"}
	}
	if c.Timeout < 0 {
		return &Error{Field: "timeout", Message: "must not be negative"}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return &Error{Field: "logging", Message: "rotation limits must not be negative"}
	}
	return nil
}

// Package proc runs external generator programs.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of a finished process.
type Result struct {
	Stdout []byte
	Stderr []byte

	// ExitCode is the observed process exit status.
	ExitCode int
}

// Runner is the process capability consumed by generator tools.
type Runner interface {
	Run(ctx context.Context, commandLine string) (*Result, error)
}

// LaunchError reports that the command could not be started at all. It is
// distinct from a command that started and exited non-zero.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cannot start process: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a command that ran but exited with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   []byte
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	msg := firstLine(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("process exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("process exited with status %d: %s", e.ExitCode, msg)
}

func firstLine(b []byte) string {
	msg := strings.TrimSpace(string(b))
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	return msg
}

// ErrTimeout is wrapped by the error returned when a command outlives
// Shell.Timeout.
var ErrTimeout = errors.New("process timed out")

// Shell runs command lines through the platform shell, one at a time.
type Shell struct {
	// Dir is the working directory of spawned processes. Empty means the
	// current directory.
	Dir string

	// Timeout bounds a single invocation. Zero waits indefinitely.
	Timeout time.Duration
}

var _ Runner = (*Shell)(nil)

// Run starts commandLine, waits for it and returns the captured output.
//
// A non-zero exit is reported through Result.ExitCode, not as an error,
// except the statuses the shell uses for a program it cannot find or run.
// Errors are *LaunchError when the process could not be started, or wrap
// ErrTimeout / the context error when it was killed.
func (s *Shell) Run(ctx context.Context, commandLine string) (*Result, error) {
	if strings.TrimSpace(commandLine) == "" {
		return nil, &LaunchError{Command: commandLine, Err: errors.New("empty command line")}
	}

	runCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := shellCommand(commandLine)
	cmd.Dir = s.Dir
	cmd.Env = os.Environ()
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: commandLine, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-runCtx.Done():
		// Kill the whole group so grandchildren of the shell die too.
		killProcessGroup(cmd)
		<-done
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, s.Timeout)
		}
		return nil, fmt.Errorf("execution cancelled: %w", runCtx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &LaunchError{Command: commandLine, Err: err}
		}
		exitCode = exitErr.ExitCode()
	}
	// The shell itself reports a program it could not find or execute.
	if isLaunchFailureStatus(exitCode) {
		cause := fmt.Errorf("shell exit status %d", exitCode)
		if msg := firstLine(stderr.Bytes()); msg != "" {
			cause = fmt.Errorf("shell exit status %d: %s", exitCode, msg)
		}
		return nil, &LaunchError{Command: commandLine, Err: cause}
	}

	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

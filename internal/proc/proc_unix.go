//go:build !windows

package proc

import (
	"os/exec"
	"strings"
	"syscall"
)

func shellCommand(line string) *exec.Cmd {
	return exec.Command("sh", "-c", line)
}

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		// Negative pid targets the process group.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// 126: found but not executable. 127: not found.
func isLaunchFailureStatus(code int) bool {
	return code == 126 || code == 127
}

// QuoteArg returns s as a single shell word. Nothing inside single quotes
// is expanded, so only the quote itself needs escaping.
func QuoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

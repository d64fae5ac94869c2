//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

func shellCommand(line string) *exec.Cmd {
	cmd := exec.Command("cmd")
	// With /S cmd.exe strips exactly the outer pair of quotes and keeps the
	// rest of the line, including quoted program paths, untouched.
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: `/S /C "` + line + `"`}
	return cmd
}

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// 9009: "is not recognized as an internal or external command".
func isLaunchFailureStatus(code int) bool {
	return code == 9009
}

// QuoteArg returns s as a single cmd.exe word. Double quotes cannot occur in
// Windows file names, so wrapping is enough.
func QuoteArg(s string) string {
	return `"` + s + `"`
}

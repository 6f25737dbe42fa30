//go:build !windows

package devserver

import (
	"os/exec"
	"syscall"
)

const npmExecutable = "npm"

// ShellCommand runs cmdline through sh.
func ShellCommand(cmdline string) []string {
	return []string{"sh", "-c", cmdline}
}

// npm forks node, so signals go to the whole group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func kill(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

//go:build windows

package devserver

import (
	"os/exec"
)

const npmExecutable = "npm.cmd"

// ShellCommand runs cmdline through cmd.exe.
func ShellCommand(cmdline string) []string {
	return []string{"cmd", "/C", cmdline}
}

func setProcessGroup(*exec.Cmd) {}

// Windows has no SIGTERM; terminate and kill are the same call.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

//go:build !windows

package dispatch

import (
	"os/exec"
	"syscall"
)

func detachCommandProcess(cmd *exec.Cmd) {
	// New session: the worker is not tied to the dispatcher's terminal or
	// process group and keeps running after the dispatcher exits.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

func applyOSSpecificSettings(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func sendGracefulSignal(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}

//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func applyOSSpecificSettings(cmd *exec.Cmd) {
	// Process groups work differently on Windows (Job Objects); nothing
	// extra to set for a single re-exec'd child.
}

// sendGracefulSignal on Windows maps to CTRL_C_EVENT via os.Interrupt; for
// non-console processes this falls back to TerminateProcess.
func sendGracefulSignal(process *os.Process) error {
	return process.Signal(os.Interrupt)
}

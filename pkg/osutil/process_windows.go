//go:build windows

package osutil

import (
	"os"
	"os/exec"
	"time"
)

// GracefulShutdownDelay exists for parity with unix; windows kills immediately.
const GracefulShutdownDelay = 2 * time.Second

// SetProcessGroup is a no-op on windows.
func SetProcessGroup(_ *exec.Cmd) {}

// SetProcessGroupKill kills the direct child on cancellation. Grandchildren
// may outlive it.
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
	cmd.WaitDelay = GracefulShutdownDelay
}

//go:build unix

package osutil

import (
	"os/exec"
	"syscall"
	"time"
)

// GracefulShutdownDelay is how long a cancelled process group gets between
// SIGTERM and SIGKILL.
const GracefulShutdownDelay = 2 * time.Second

// SetProcessGroup runs cmd in its own process group so that cancelling it
// also stops the children it spawns (git helpers, npm, node).
func SetProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// SetProcessGroupKill makes context cancellation send SIGTERM to the whole
// group, followed by SIGKILL once GracefulShutdownDelay has passed.
// Call it after SetProcessGroup and before cmd.Start.
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		pid := cmd.Process.Pid
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
			if err == syscall.ESRCH {
				return nil
			}
			return syscall.Kill(-pid, syscall.SIGKILL)
		}
		go func() {
			time.Sleep(GracefulShutdownDelay)
			_ = syscall.Kill(-pid, syscall.SIGKILL)
		}()
		return nil
	}
	cmd.WaitDelay = GracefulShutdownDelay + time.Second
}

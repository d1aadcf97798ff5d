//go:build !linux

package sandbox

import (
	"os"
	"os/exec"
	"time"
)

func setSysProcAttr(c *exec.Cmd) {}

func kill(c *exec.Cmd) {
	if c.Process == nil {
		return
	}
	_ = c.Process.Kill()
}

// applyLimits is a no-op off Linux; only the wall-clock watchdog applies.
func applyLimits(pid int, lim Limits) error {
	return nil
}

func usage(ps *os.ProcessState) (time.Duration, int64) {
	return ps.UserTime() + ps.SystemTime(), 0
}

func exceededCPU(ps *os.ProcessState) bool {
	return false
}

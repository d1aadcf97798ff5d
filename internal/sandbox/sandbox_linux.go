//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setSysProcAttr puts the child in its own process group so the watchdog can
// kill the whole tree, and arranges for the kernel to reap it if the engine
// itself dies.
func setSysProcAttr(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func kill(c *exec.Cmd) {
	if c.Process == nil {
		return
	}
	// Negative pid addresses the process group.
	_ = unix.Kill(-c.Process.Pid, unix.SIGKILL)
	_ = c.Process.Kill()
}

// applyLimits installs the CPU and address-space ceilings on the running
// child. Enforcement is the kernel's, not the engine's: overruns surface as
// SIGXCPU or failing allocations inside the child.
func applyLimits(pid int, lim Limits) error {
	if lim.CPUTime > 0 {
		secs := uint64((lim.CPUTime + time.Second - 1) / time.Second)
		rl := unix.Rlimit{Cur: secs, Max: secs}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &rl, nil); err != nil {
			return err
		}
	}
	if lim.MemoryBytes > 0 {
		rl := unix.Rlimit{Cur: uint64(lim.MemoryBytes), Max: uint64(lim.MemoryBytes)}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rl, nil); err != nil {
			return err
		}
	}
	return nil
}

func usage(ps *os.ProcessState) (time.Duration, int64) {
	ru, ok := ps.SysUsage().(*syscall.Rusage)
	if !ok {
		return ps.UserTime() + ps.SystemTime(), 0
	}
	cpu := time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	// Maxrss is kilobytes on Linux.
	return cpu, ru.Maxrss
}

func exceededCPU(ps *os.ProcessState) bool {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGXCPU
}

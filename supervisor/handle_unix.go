//go:build unix

package supervisor

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func signalProcess(proc *os.Process, group bool, sig unix.Signal) error {
	if group {
		// Negative pid addresses the whole process group.
		err := unix.Kill(-proc.Pid, sig)
		if err == nil || !errors.Is(err, unix.ESRCH) {
			return err
		}
	}
	return proc.Signal(sig)
}

func interruptProcess(proc *os.Process, group bool) error {
	return signalProcess(proc, group, unix.SIGTERM)
}

func killProcess(proc *os.Process, group bool) error {
	return signalProcess(proc, group, unix.SIGKILL)
}

package supervisor

import (
	"context"
	"os"
)

// Handle gives the supervisor termination rights over a unit of work.
// The supervisor never waits on or reaps what is behind a handle; whoever
// started the work owns its lifecycle and closes Exited when it ends.
type Handle interface {
	// Interrupt asks the work to stop gracefully.
	Interrupt() error
	// Kill forces the work to stop.
	Kill() error
	// Exited is closed once the work has stopped.
	Exited() <-chan struct{}
}

// pidHandle is implemented by handles backed by an OS process so the
// monitor can sample their resource usage.
type pidHandle interface {
	PID() int
}

// CancelHandle adapts a context cancellation to Handle. Cancellation is the
// only stop mechanism, so Kill is the same as Interrupt.
type CancelHandle struct {
	cancel context.CancelFunc
	done   <-chan struct{}
}

// NewCancelHandle wraps cancel; done must be closed when the work returns.
func NewCancelHandle(cancel context.CancelFunc, done <-chan struct{}) *CancelHandle {
	return &CancelHandle{cancel: cancel, done: done}
}

func (h *CancelHandle) Interrupt() error {
	h.cancel()
	return nil
}

func (h *CancelHandle) Kill() error {
	h.cancel()
	return nil
}

func (h *CancelHandle) Exited() <-chan struct{} {
	return h.done
}

// ProcessHandle signals an OS process, or its whole process group when the
// process was started as a group leader.
type ProcessHandle struct {
	proc   *os.Process
	group  bool
	exited <-chan struct{}
}

// NewProcessHandle wraps a started process. exited must be closed by the
// caller once its Wait returns.
func NewProcessHandle(proc *os.Process, group bool, exited <-chan struct{}) *ProcessHandle {
	return &ProcessHandle{proc: proc, group: group, exited: exited}
}

// PID returns the process id.
func (h *ProcessHandle) PID() int {
	return h.proc.Pid
}

func (h *ProcessHandle) Interrupt() error {
	return interruptProcess(h.proc, h.group)
}

func (h *ProcessHandle) Kill() error {
	return killProcess(h.proc, h.group)
}

func (h *ProcessHandle) Exited() <-chan struct{} {
	return h.exited
}

func exited(h Handle) bool {
	if h == nil {
		return true
	}
	select {
	case <-h.Exited():
		return true
	default:
		return false
	}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/supervisor"
)

// LaunchOptions configures the process started by Launch.
type LaunchOptions struct {
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Env replaces the environment when non-nil.
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a command running as a supervised subagent. Wait must be called
// to reap the process and release its registry entry.
type Process struct {
	id      string
	name    string
	cmd     *exec.Cmd
	sup     *supervisor.Supervisor
	started time.Time
	exited  chan struct{}

	waitOnce sync.Once
	code     int
	err      error
}

// Launch registers name with sup and, once admitted, starts argv in its own
// process group. The supervisor may interrupt or kill the process at any
// time; cancelling ctx terminates it as well.
func Launch(ctx context.Context, sup *supervisor.Supervisor, name string, argv []string, opts LaunchOptions) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("launch: empty command")
	}
	if name == "" {
		name = argv[0]
	}

	// Register before starting so a rejection never spawns anything.
	id, err := sup.Register(supervisor.NewID(name), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	group := setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		sup.Cleanup(id)
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &Process{
		id:      id,
		name:    name,
		cmd:     cmd,
		sup:     sup,
		started: time.Now(),
		exited:  make(chan struct{}),
	}
	if err := sup.AttachHandle(id, supervisor.NewProcessHandle(cmd.Process, group, p.exited)); err != nil {
		// The record was terminated while we were starting; the process has
		// been killed, reap it.
		p.Wait()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	log.InfoLog.Printf("launched %s as %s (pid %d)", name, id, cmd.Process.Pid)

	go func() {
		select {
		case <-ctx.Done():
			sup.Terminate(id, fmt.Sprintf("context done: %v", ctx.Err()))
		case <-p.exited:
		}
	}()
	return p, nil
}

// ID returns the registry id of the process.
func (p *Process) ID() string {
	return p.id
}

// Name returns the name the process was launched under.
func (p *Process) Name() string {
	return p.name
}

// PID returns the OS process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Exited is closed once the process has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the process exits, removes it from the supervisor and
// returns its exit code. A process stopped by a signal reports -1. The error
// is only set when waiting itself failed; a non-zero exit is not an error.
// Wait may be called from several goroutines.
func (p *Process) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		close(p.exited)
		p.sup.Cleanup(p.id)

		p.code = -1
		if p.cmd.ProcessState != nil {
			p.code = p.cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.err = fmt.Errorf("failed to wait for %s: %w", p.name, err)
		}
		log.InfoLog.Printf("%s (%s) exited with code %d after %s",
			p.name, p.id, p.code, time.Since(p.started).Round(time.Millisecond))
	})
	return p.code, p.err
}

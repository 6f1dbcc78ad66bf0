package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/supervisor"
	"golang.org/x/sync/errgroup"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// Command is one unit of work for a Pool.
type Command struct {
	Name string
	Argv []string
}

// Result is the outcome of a Command. Err is set when the command could not
// be started or waited for; ExitCode is -1 in that case.
type Result struct {
	Name     string
	ID       string
	ExitCode int
	Err      error
	Duration time.Duration
}

// Failed reports whether the command did not run to a zero exit.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Pool runs batches of commands as supervised subagents.
type Pool struct {
	sup  *supervisor.Supervisor
	opts LaunchOptions

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewPool creates a pool whose processes are started with opts.
func NewPool(sup *supervisor.Supervisor, opts LaunchOptions) *Pool {
	return &Pool{
		sup:            sup,
		opts:           opts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// RunAll runs every command and waits for all of them. At most
// MaxConcurrentSubagents commands are in flight; a command the supervisor
// turns away for lack of capacity is retried until ctx is done. Results are
// returned in the order of cmds.
func (p *Pool) RunAll(ctx context.Context, cmds []Command) []Result {
	results := make([]Result, len(cmds))

	var g errgroup.Group
	g.SetLimit(p.sup.Limits().MaxConcurrentSubagents)
	for i, c := range cmds {
		g.Go(func() error {
			results[i] = p.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pool) run(ctx context.Context, c Command) Result {
	start := time.Now()
	res := Result{Name: c.Name, ExitCode: -1}

	proc, err := p.launch(ctx, c)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	res.ID = proc.ID()
	res.ExitCode, res.Err = proc.Wait()
	res.Duration = time.Since(start)
	return res
}

// launch starts c, backing off while the supervisor is at capacity. Draining
// and an expired session are final.
func (p *Pool) launch(ctx context.Context, c Command) (*Process, error) {
	backoff := p.initialBackoff
	for {
		proc, err := Launch(ctx, p.sup, c.Name, c.Argv, p.opts)
		if err == nil {
			return proc, nil
		}
		if !retryable(err) {
			return nil, err
		}

		log.DebugLog.Printf("%s waiting %s for capacity: %v", c.Name, backoff, err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(err, ctx.Err())
		case <-p.sup.Done():
			timer.Stop()
			return nil, supervisor.ErrDraining
		case <-timer.C:
		}
		backoff = min(2*backoff, p.maxBackoff)
	}
}

func retryable(err error) bool {
	return errors.Is(err, supervisor.ErrCapacityExceeded) &&
		!errors.Is(err, supervisor.ErrDraining) &&
		!errors.Is(err, supervisor.ErrSessionExpired)
}

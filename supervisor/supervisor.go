package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ByteMirror/overseer/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/ByteMirror/overseer/supervisor"

// ResourceSampler measures the memory (MB) and CPU (percent) used by a
// process and its descendants.
type ResourceSampler interface {
	Sample(ctx context.Context, pid int) (memoryMB, cpuPercent float64, err error)
}

// SystemStatsFunc reports host-wide memory and CPU utilisation in percent.
type SystemStatsFunc func() (memoryPercent, cpuPercent float64)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// WithResourceSampler makes the monitor sample process-backed subagents
// every tick.
func WithResourceSampler(sampler ResourceSampler) Option {
	return func(s *Supervisor) { s.sampler = sampler }
}

// WithSystemStats sets the source of the system_* fields in reports.
func WithSystemStats(f SystemStatsFunc) Option {
	return func(s *Supervisor) { s.systemStats = f }
}

// Supervisor admits, monitors and terminates subagents so that together they
// never outgrow the configured Limits. It is the only owner of its registry.
type Supervisor struct {
	limits      Limits
	now         func() time.Time
	sampler     ResourceSampler
	systemStats SystemStatsFunc
	tracer      trace.Tracer

	mu            sync.Mutex
	records       map[string]*record
	totalMemoryMB float64
	sessionStart  time.Time
	draining      bool
	expired       bool

	stopMonitor  chan struct{}
	monitorDone  chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// New validates limits and starts the monitor loop. The caller must call
// Shutdown to stop it.
func New(limits Limits, opts ...Option) (*Supervisor, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	s := &Supervisor{
		limits:      limits,
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
		records:     make(map[string]*record),
		stopMonitor: make(chan struct{}),
		monitorDone: make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessionStart = s.now()

	go s.monitor()

	log.InfoLog.Printf("supervisor started: max %d subagents, %.0fMB memory, %.0f%% cpu, %s per subagent, %s session",
		limits.MaxConcurrentSubagents, limits.MaxMemoryMB, limits.MaxCPUPercent,
		limits.ExecutionTimeout(), limits.SessionTimeout())
	return s, nil
}

// Limits returns the limits the supervisor was built with.
func (s *Supervisor) Limits() Limits {
	return s.limits
}

// Done is closed once Shutdown has drained the registry.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Register admits a new ACTIVE subagent. An empty id is replaced by a
// generated one; the id actually used is returned. h may be nil for work
// that cannot be stopped from outside, or attached later with AttachHandle.
func (s *Supervisor) Register(id string, h Handle) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	if s.sessionExpiredLocked() {
		firstExpiry := !s.expired
		s.expired = true
		s.draining = true
		age := s.now().Sub(s.sessionStart)
		s.mu.Unlock()

		log.WarningLog.Printf("rejecting subagent %s: session age %s exceeds %s", id, age.Round(time.Second), s.limits.SessionTimeout())
		if firstExpiry {
			s.drain("session timeout")
		}
		return "", ErrSessionExpired
	}
	if s.draining {
		s.mu.Unlock()
		return "", ErrDraining
	}
	if _, exists := s.records[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateSubagent, id)
	}
	if running := s.runningLocked(); running >= s.limits.MaxConcurrentSubagents {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %d of %d subagents running", ErrCapacityExceeded, running, s.limits.MaxConcurrentSubagents)
	}
	s.records[id] = newRecord(id, h, s.now())
	s.mu.Unlock()

	log.InfoLog.Printf("registered subagent %s", id)
	return id, nil
}

// AttachHandle gives the supervisor termination rights over work that was
// started after Register. If the record is gone or already terminating the
// handle is killed immediately.
func (s *Supervisor) AttachHandle(id string, h Handle) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	var err error
	switch {
	case !ok:
		err = fmt.Errorf("%w: %s", ErrUnknownSubagent, id)
	case rec.stopped != nil:
		err = fmt.Errorf("%w: %s", ErrAlreadyTerminated, id)
	default:
		rec.handle = h
	}
	s.mu.Unlock()

	if err != nil {
		if killErr := h.Kill(); killErr != nil {
			log.WarningLog.Printf("failed to kill orphaned handle of %s: %v", id, killErr)
		}
	}
	return err
}

// UpdateResources records the latest memory and CPU samples for id.
func (s *Supervisor) UpdateResources(id string, memoryMB, cpuPercent float64) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok {
		rec.memoryMB = memoryMB
		rec.cpuPercent = cpuPercent
		if memoryMB > rec.peakMemoryMB {
			rec.peakMemoryMB = memoryMB
		}
		s.recomputeLocked()
	}
	s.mu.Unlock()

	if !ok {
		log.WarningLog.Printf("update resources: %v: %s", ErrUnknownSubagent, id)
	}
}

// CheckHealth evaluates id against the limits in a fixed order: execution
// time, own memory, CPU, then aggregate memory. Exceeding the execution time
// or the memory kill threshold terminates the subagent; the other limits only
// raise a WARNING, which clears once the subagent is back within limits.
// An unknown id reports TERMINATED.
func (s *Supervisor) CheckHealth(id string) Status {
	now := s.now()

	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		log.WarningLog.Printf("check health: %v: %s", ErrUnknownSubagent, id)
		return StatusTerminated
	}
	if !rec.status.Running() {
		status := rec.status
		s.mu.Unlock()
		return status
	}

	limits := s.limits
	if elapsed := now.Sub(rec.startTime); elapsed > limits.ExecutionTimeout() {
		s.mu.Unlock()
		s.Terminate(id, fmt.Sprintf("execution time %s exceeded limit %s", elapsed.Round(time.Millisecond), limits.ExecutionTimeout()))
		return StatusTerminated
	}

	var warnings []string
	if rec.memoryMB > limits.MaxMemoryMB {
		if rec.memoryMB > limits.KillThresholdMB() {
			memory := rec.memoryMB
			s.mu.Unlock()
			s.Terminate(id, fmt.Sprintf("memory %.1fMB exceeded kill threshold %.1fMB", memory, limits.KillThresholdMB()))
			return StatusTerminated
		}
		warnings = append(warnings, fmt.Sprintf("memory %.1fMB exceeds limit %.1fMB", rec.memoryMB, limits.MaxMemoryMB))
	}
	if rec.cpuPercent > limits.MaxCPUPercent {
		warnings = append(warnings, fmt.Sprintf("cpu %.1f%% exceeds limit %.1f%%", rec.cpuPercent, limits.MaxCPUPercent))
	}
	if s.totalMemoryMB > limits.MaxMemoryMB {
		warnings = append(warnings, fmt.Sprintf("aggregate memory %.1fMB exceeds limit %.1fMB", s.totalMemoryMB, limits.MaxMemoryMB))
	}

	if len(warnings) > 0 {
		for _, w := range warnings {
			rec.warn(w)
		}
		rec.status = rec.status.next(StatusWarning)
	} else {
		rec.status = rec.status.next(StatusActive)
	}
	status := rec.status
	s.mu.Unlock()

	for _, w := range warnings {
		log.WarningLog.Printf("subagent %s: %s", id, w)
	}
	return status
}

// Terminate stops id and marks it TERMINATED. It is idempotent: terminating
// an already terminated subagent returns true immediately, and concurrent
// callers all return once the first termination has finished. It returns
// false only for an unknown id.
//
// A handle, if any, is interrupted and given the grace period to exit before
// it is killed. The record ends up TERMINATED whether or not the handle
// actually stopped.
func (s *Supervisor) Terminate(id, reason string) bool {
	_, span := s.tracer.Start(context.Background(), "supervisor.terminate",
		trace.WithAttributes(attribute.String("subagent.id", id), attribute.String("reason", reason)))
	defer span.End()

	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		log.WarningLog.Printf("terminate: %v: %s", ErrUnknownSubagent, id)
		return false
	}
	if rec.stopped != nil {
		stopped := rec.stopped
		s.mu.Unlock()
		<-stopped
		return true
	}
	rec.stopped = make(chan struct{})
	rec.status = rec.status.next(StatusCritical)
	rec.warn("terminated: " + reason)
	h := rec.handle
	grace := s.limits.GracePeriod()
	s.mu.Unlock()

	log.InfoLog.Printf("terminating subagent %s: %s", id, reason)
	if h != nil {
		stopHandle(id, h, grace)
	}

	s.mu.Lock()
	rec.status = rec.status.next(StatusTerminated)
	rec.endTime = s.now()
	close(rec.stopped)
	s.mu.Unlock()
	return true
}

// stopHandle interrupts h, waits up to grace for it to exit and then kills
// it. Failures are logged; they never change the bookkeeping outcome.
func stopHandle(id string, h Handle, grace time.Duration) {
	if exited(h) {
		return
	}
	if err := h.Interrupt(); err != nil {
		log.WarningLog.Printf("subagent %s: interrupt failed: %v", id, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.Exited():
		return
	case <-timer.C:
	}

	log.WarningLog.Printf("subagent %s did not stop within %s, killing", id, grace)
	if err := h.Kill(); err != nil {
		log.WarningLog.Printf("subagent %s: kill failed: %v", id, err)
	}
}

// Cleanup removes id from the registry. A record that is still running
// behind a live handle is terminated first. Cleaning up an unknown id is a
// no-op, so Cleanup may be called any number of times.
func (s *Supervisor) Cleanup(id string) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		log.DebugLog.Printf("cleanup: subagent %s already removed", id)
		return
	}
	mustStop := rec.status != StatusTerminated && (rec.stopped != nil || !exited(rec.handle))
	s.mu.Unlock()

	if mustStop {
		s.Terminate(id, "cleanup of running subagent")
	}

	s.mu.Lock()
	rec, ok = s.records[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.records, id)
	s.recomputeLocked()
	duration := rec.duration(s.now())
	status, peak, warnings := rec.status, rec.peakMemoryMB, len(rec.warnings)
	s.mu.Unlock()

	log.InfoLog.Printf("cleaned up subagent %s (%s): ran %s, peak memory %.1fMB, %d warnings",
		id, status, duration.Round(time.Millisecond), peak, warnings)
}

// Shutdown stops the monitor loop, then terminates and cleans up every
// remaining subagent. Only the first call does any work; later calls block
// until it has finished.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.draining = true
		s.mu.Unlock()

		close(s.stopMonitor)
		wait := max(2*min(s.limits.CheckInterval(), time.Hour), 5*time.Second)
		select {
		case <-s.monitorDone:
		case <-time.After(wait):
			log.WarningLog.Printf("monitor loop did not exit within %s", wait)
		}

		s.drain("supervisor shutdown")
		close(s.done)
		log.InfoLog.Printf("supervisor shut down after %s", s.now().Sub(s.sessionStart).Round(time.Second))
	})
}

// drain terminates and cleans up every record concurrently so one slow
// handle does not hold up the rest.
func (s *Supervisor) drain(reason string) {
	s.mu.Lock()
	ids := s.idsLocked()
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	log.InfoLog.Printf("draining %d subagents: %s", len(ids), reason)

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			s.Terminate(id, reason)
			s.Cleanup(id)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) sessionExpiredLocked() bool {
	return s.now().Sub(s.sessionStart) > s.limits.SessionTimeout()
}

func (s *Supervisor) runningLocked() int {
	n := 0
	for _, rec := range s.records {
		if rec.status.Running() {
			n++
		}
	}
	return n
}

// recomputeLocked rebuilds the aggregate from every record rather than
// applying deltas, so the total and the entries cannot drift apart.
func (s *Supervisor) recomputeLocked() {
	total := 0.0
	for _, rec := range s.records {
		total += rec.memoryMB
	}
	s.totalMemoryMB = total
}

func (s *Supervisor) idsLocked() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

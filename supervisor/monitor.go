package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/ByteMirror/overseer/log"
	"go.opentelemetry.io/otel/attribute"
)

// monitor runs a sweep every CheckInterval until Shutdown closes stopMonitor.
func (s *Supervisor) monitor() {
	defer close(s.monitorDone)

	ticker := time.NewTicker(s.limits.CheckInterval())
	defer ticker.Stop()

	// Logged at most once a minute while a single subagent holds the
	// aggregate over the limit.
	stuck := log.NewEvery(time.Minute)

	for {
		select {
		case <-s.stopMonitor:
			return
		case <-ticker.C:
			s.sweep(stuck)
		}
	}
}

// sweep is one monitor tick.
func (s *Supervisor) sweep(stuck *log.Every) {
	ctx, span := s.tracer.Start(context.Background(), "supervisor.sweep")
	defer span.End()

	if s.expireSession() {
		span.SetAttributes(attribute.Bool("session.expired", true))
		s.drain("session timeout")
		return
	}

	s.sampleResources(ctx)

	s.mu.Lock()
	ids := s.idsLocked()
	s.mu.Unlock()
	span.SetAttributes(attribute.Int("subagents", len(ids)))

	for _, id := range ids {
		s.guard(id, "health check", func() {
			if s.CheckHealth(id) == StatusTerminated {
				s.Cleanup(id)
			}
		})
	}

	if victim := s.evictForPressure(stuck); victim != "" {
		span.SetAttributes(attribute.String("evicted", victim))
	}
}

// guard isolates a panic while handling one subagent so the rest of the
// sweep still runs.
func (s *Supervisor) guard(id, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorLog.Printf("monitor: %s of subagent %s failed: %v", what, id, r)
		}
	}()
	fn()
}

// expireSession reports whether the session timed out on this tick. It is
// true only once; the registry is closed to new subagents from then on.
func (s *Supervisor) expireSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired || !s.sessionExpiredLocked() {
		return false
	}
	s.expired = true
	s.draining = true
	return true
}

// sampleResources refreshes memory and CPU for every running process-backed
// subagent. Sampling runs outside the registry lock.
func (s *Supervisor) sampleResources(ctx context.Context) {
	if s.sampler == nil {
		return
	}

	type target struct {
		id  string
		pid int
	}
	var targets []target
	s.mu.Lock()
	for id, rec := range s.records {
		if !rec.status.Running() || exited(rec.handle) {
			continue
		}
		if p, ok := rec.handle.(pidHandle); ok {
			targets = append(targets, target{id: id, pid: p.PID()})
		}
	}
	s.mu.Unlock()

	for _, t := range targets {
		s.guard(t.id, "resource sampling", func() {
			memoryMB, cpuPercent, err := s.sampler.Sample(ctx, t.pid)
			if err != nil {
				log.DebugLog.Printf("sampling subagent %s (pid %d): %v", t.id, t.pid, err)
				return
			}
			s.UpdateResources(t.id, memoryMB, cpuPercent)
		})
	}
}

// evictForPressure terminates and cleans up a single subagent when the
// aggregate memory is over the limit and more than one subagent remains.
// It returns the evicted id, or "" if nothing was evicted.
func (s *Supervisor) evictForPressure(stuck *log.Every) string {
	s.mu.Lock()
	total, limit := s.totalMemoryMB, s.limits.MaxMemoryMB
	if total <= limit {
		s.mu.Unlock()
		return ""
	}
	if len(s.records) <= 1 {
		s.mu.Unlock()
		if stuck.ShouldLog() {
			log.WarningLog.Printf("aggregate memory %.1fMB exceeds limit %.1fMB but only one subagent remains", total, limit)
		}
		return ""
	}
	victim := pickEvictionVictim(s.records)
	s.mu.Unlock()

	if victim == "" {
		return ""
	}
	log.WarningLog.Printf("aggregate memory %.1fMB exceeds limit %.1fMB, evicting oldest subagent %s", total, limit, victim)
	s.Terminate(victim, fmt.Sprintf("evicted under aggregate memory pressure (%.1fMB > %.1fMB)", total, limit))
	s.Cleanup(victim)
	return victim
}

// pickEvictionVictim returns the running record that started first, using
// the smallest id as the tie-break.
func pickEvictionVictim(records map[string]*record) string {
	var victim *record
	for _, rec := range records {
		if !rec.status.Running() {
			continue
		}
		if victim == nil ||
			rec.startTime.Before(victim.startTime) ||
			(rec.startTime.Equal(victim.startTime) && rec.id < victim.id) {
			victim = rec
		}
	}
	if victim == nil {
		return ""
	}
	return victim.id
}

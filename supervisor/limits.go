package supervisor

import (
	"fmt"
	"math"
	"time"
)

// Limits is the resource envelope every subagent in a session runs under.
// It is validated once by New and never mutated afterwards.
type Limits struct {
	// MaxMemoryMB bounds a single subagent and the aggregate of all subagents.
	MaxMemoryMB float64 `json:"max_memory_mb" toml:"max_memory_mb" yaml:"max_memory_mb"`
	// MaxCPUPercent is the per-subagent CPU warning threshold.
	MaxCPUPercent float64 `json:"max_cpu_percent" toml:"max_cpu_percent" yaml:"max_cpu_percent"`
	// MaxExecutionTimeSeconds is a hard limit; exceeding it always terminates.
	MaxExecutionTimeSeconds float64 `json:"max_execution_time_seconds" toml:"max_execution_time_seconds" yaml:"max_execution_time_seconds"`
	// MaxConcurrentSubagents caps the number of ACTIVE or WARNING records.
	MaxConcurrentSubagents int `json:"max_concurrent_subagents" toml:"max_concurrent_subagents" yaml:"max_concurrent_subagents"`
	// MemoryCheckIntervalSeconds is the monitor tick period.
	MemoryCheckIntervalSeconds float64 `json:"memory_check_interval_seconds" toml:"memory_check_interval_seconds" yaml:"memory_check_interval_seconds"`
	// SessionTimeoutMinutes is the lifetime of the whole session.
	SessionTimeoutMinutes float64 `json:"session_timeout_minutes" toml:"session_timeout_minutes" yaml:"session_timeout_minutes"`
	// MemoryKillMultiplier scales MaxMemoryMB into the per-subagent kill threshold.
	MemoryKillMultiplier float64 `json:"memory_kill_multiplier" toml:"memory_kill_multiplier" yaml:"memory_kill_multiplier"`
	// TerminationGraceSeconds is how long Terminate waits after Interrupt before Kill.
	TerminationGraceSeconds float64 `json:"termination_grace_seconds" toml:"termination_grace_seconds" yaml:"termination_grace_seconds"`
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() Limits {
	return Limits{
		MaxMemoryMB:                2048,
		MaxCPUPercent:              80.0,
		MaxExecutionTimeSeconds:    300,
		MaxConcurrentSubagents:     3,
		MemoryCheckIntervalSeconds: 5.0,
		SessionTimeoutMinutes:      30,
		MemoryKillMultiplier:       1.5,
		TerminationGraceSeconds:    2,
	}
}

// Validate reports the first limit that is out of range.
func (l Limits) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"max_memory_mb", l.MaxMemoryMB},
		{"max_cpu_percent", l.MaxCPUPercent},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 1) {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidLimits, p.name, p.value)
		}
	}

	// Durations must survive the conversion to time.Duration: at least 1ns
	// and no more than math.MaxInt64 nanoseconds.
	durations := []struct {
		name    string
		value   float64
		seconds float64
	}{
		{"max_execution_time_seconds", l.MaxExecutionTimeSeconds, l.MaxExecutionTimeSeconds},
		{"memory_check_interval_seconds", l.MemoryCheckIntervalSeconds, l.MemoryCheckIntervalSeconds},
		{"session_timeout_minutes", l.SessionTimeoutMinutes, l.SessionTimeoutMinutes * 60},
		{"termination_grace_seconds", l.TerminationGraceSeconds, l.TerminationGraceSeconds},
	}
	for _, d := range durations {
		if !(d.value > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidLimits, d.name, d.value)
		}
		if !durationInRange(d.seconds) {
			return fmt.Errorf("%w: %s is out of range (%v), must be between 1ns and %s",
				ErrInvalidLimits, d.name, d.value, time.Duration(math.MaxInt64))
		}
	}
	if l.MaxConcurrentSubagents < 1 {
		return fmt.Errorf("%w: max_concurrent_subagents must be at least 1, got %d", ErrInvalidLimits, l.MaxConcurrentSubagents)
	}
	if !(l.MemoryKillMultiplier > 1) {
		return fmt.Errorf("%w: memory_kill_multiplier must be greater than 1, got %v", ErrInvalidLimits, l.MemoryKillMultiplier)
	}
	return nil
}

// durationInRange reports whether v seconds converts to a positive
// time.Duration without overflowing.
func durationInRange(v float64) bool {
	ns := v * float64(time.Second)
	// float64(math.MaxInt64) rounds up to 2^63, which already overflows.
	return ns >= 1 && ns < float64(math.MaxInt64)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ExecutionTimeout is MaxExecutionTimeSeconds as a duration.
func (l Limits) ExecutionTimeout() time.Duration { return seconds(l.MaxExecutionTimeSeconds) }

// CheckInterval is MemoryCheckIntervalSeconds as a duration.
func (l Limits) CheckInterval() time.Duration { return seconds(l.MemoryCheckIntervalSeconds) }

// SessionTimeout is SessionTimeoutMinutes as a duration.
func (l Limits) SessionTimeout() time.Duration { return seconds(l.SessionTimeoutMinutes * 60) }

// GracePeriod is TerminationGraceSeconds as a duration.
func (l Limits) GracePeriod() time.Duration { return seconds(l.TerminationGraceSeconds) }

// KillThresholdMB is the per-subagent memory level that forces termination.
func (l Limits) KillThresholdMB() float64 { return l.MaxMemoryMB * l.MemoryKillMultiplier }

package supervisor

import "time"

// maxWarnings bounds the per-record warning history; the oldest entries are
// dropped first.
const maxWarnings = 32

// record is the execution record of one subagent. It is only touched while
// holding Supervisor.mu.
type record struct {
	id           string
	startTime    time.Time
	endTime      time.Time
	status       Status
	memoryMB     float64
	peakMemoryMB float64
	cpuPercent   float64
	warnings     []string
	handle       Handle

	// stopped is created when termination begins and closed once the
	// record is TERMINATED.
	stopped chan struct{}
}

func newRecord(id string, h Handle, now time.Time) *record {
	return &record{
		id:        id,
		startTime: now,
		status:    StatusActive,
		handle:    h,
	}
}

func (r *record) warn(msg string) {
	r.warnings = append(r.warnings, msg)
	if over := len(r.warnings) - maxWarnings; over > 0 {
		r.warnings = append(r.warnings[:0:0], r.warnings[over:]...)
	}
}

func (r *record) duration(now time.Time) time.Duration {
	end := r.endTime
	if end.IsZero() {
		end = now
	}
	return end.Sub(r.startTime)
}

func (r *record) detail(now time.Time) SubagentDetail {
	warnings := make([]string, len(r.warnings))
	copy(warnings, r.warnings)
	return SubagentDetail{
		Status:          r.status,
		MemoryMB:        r.memoryMB,
		CPUPercent:      r.cpuPercent,
		Warnings:        warnings,
		DurationSeconds: r.duration(now).Seconds(),
	}
}

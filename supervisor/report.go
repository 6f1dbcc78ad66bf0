package supervisor

import "time"

// Report is a point-in-time view of the registry and the configured limits.
type Report struct {
	Timestamp              time.Time                 `json:"timestamp"`
	ActiveSubagents        int                       `json:"active_subagents"`
	TotalMemoryUsedMB      float64                   `json:"total_memory_used_mb"`
	SystemMemoryPercent    float64                   `json:"system_memory_percent"`
	SystemCPUPercent       float64                   `json:"system_cpu_percent"`
	SessionDurationMinutes float64                   `json:"session_duration_minutes"`
	Limits                 Limits                    `json:"limits"`
	SubagentDetails        map[string]SubagentDetail `json:"subagent_details"`
}

// SubagentDetail is the per-record part of a Report.
type SubagentDetail struct {
	Status          Status   `json:"status"`
	MemoryMB        float64  `json:"memory_mb"`
	CPUPercent      float64  `json:"cpu_percent"`
	Warnings        []string `json:"warnings"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Snapshot assembles a Report from the registry as it is at call time.
func (s *Supervisor) Snapshot() Report {
	var memPct, cpuPct float64
	if s.systemStats != nil {
		memPct, cpuPct = s.systemStats()
	}

	now := s.now()

	s.mu.Lock()
	report := Report{
		Timestamp:              now,
		ActiveSubagents:        len(s.records),
		TotalMemoryUsedMB:      s.totalMemoryMB,
		SessionDurationMinutes: now.Sub(s.sessionStart).Minutes(),
		Limits:                 s.limits,
		SubagentDetails:        make(map[string]SubagentDetail, len(s.records)),
	}
	for id, rec := range s.records {
		report.SubagentDetails[id] = rec.detail(now)
	}
	s.mu.Unlock()

	report.SystemMemoryPercent = memPct
	report.SystemCPUPercent = cpuPct
	return report
}

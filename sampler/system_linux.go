//go:build linux

package sampler

import (
	"runtime"

	"github.com/ByteMirror/overseer/log"
	"golang.org/x/sys/unix"
)

// SystemStats reports host memory in use and the one-minute load average as
// a share of the available CPUs, both in percent.
func SystemStats() (memoryPercent, cpuPercent float64) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		log.DebugLog.Printf("sysinfo failed: %v", err)
		return 0, 0
	}
	return memoryPercentOf(info), loadPercent(uint64(info.Loads[0]), runtime.NumCPU())
}

func memoryPercentOf(info unix.Sysinfo_t) float64 {
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(info.Totalram) * unit
	if total == 0 {
		return 0
	}
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if free > total {
		free = total
	}
	return float64(total-free) / float64(total) * 100
}

// loadPercent converts a fixed-point load average (scaled by 1<<SI_LOAD_SHIFT)
// into percent of cpus, capped at 100.
func loadPercent(load uint64, cpus int) float64 {
	if cpus < 1 {
		cpus = 1
	}
	pct := float64(load) / 65536 / float64(cpus) * 100
	return min(pct, 100)
}

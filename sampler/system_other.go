//go:build !linux

package sampler

// SystemStats is only implemented on linux.
func SystemStats() (memoryPercent, cpuPercent float64) {
	return 0, 0
}

//go:build linux

package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestSystemStatsInRange(t *testing.T) {
	mem, cpu := SystemStats()
	assert.GreaterOrEqual(t, mem, 0.0)
	assert.LessOrEqual(t, mem, 100.0)
	assert.GreaterOrEqual(t, cpu, 0.0)
	assert.LessOrEqual(t, cpu, 100.0)
}

func TestLoadPercent(t *testing.T) {
	assert.InDelta(t, 50.0, loadPercent(2*65536, 4), 0.001)
	assert.Equal(t, 100.0, loadPercent(16*65536, 2))
	assert.InDelta(t, 100.0, loadPercent(65536, 0), 0.001)
}

func TestMemoryPercentOf(t *testing.T) {
	var info unix.Sysinfo_t
	assert.Equal(t, 0.0, memoryPercentOf(info))

	info.Totalram = 1000
	info.Freeram = 200
	info.Bufferram = 50
	info.Unit = 1
	assert.InDelta(t, 75.0, memoryPercentOf(info), 0.001)
}

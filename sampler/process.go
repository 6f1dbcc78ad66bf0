// Package sampler measures the resource usage of supervised processes and of
// the host they run on.
package sampler

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// procInfo is one row of ps output.
type procInfo struct {
	pid  int
	ppid int
	comm string
	cpu  float64
	rss  float64 // KiB
}

type processTree struct {
	procs    map[int]procInfo
	children map[int][]int
}

// parseProcessTree parses "pid ppid comm pcpu rss" rows. Malformed rows are
// skipped; comm is reduced to its basename.
func parseProcessTree(output string) (*processTree, error) {
	tree := &processTree{
		procs:    make(map[int]procInfo),
		children: make(map[int][]int),
	}

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		// comm may contain spaces; pcpu and rss are always the last two.
		n := len(fields)
		pid, err1 := strconv.Atoi(fields[0])
		ppid, err2 := strconv.Atoi(fields[1])
		cpu, err3 := strconv.ParseFloat(fields[n-2], 64)
		rss, err4 := strconv.ParseFloat(fields[n-1], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		tree.procs[pid] = procInfo{
			pid:  pid,
			ppid: ppid,
			comm: filepath.Base(strings.Join(fields[2:n-2], " ")),
			cpu:  cpu,
			rss:  rss,
		}
		tree.children[ppid] = append(tree.children[ppid], pid)
	}

	if len(tree.procs) == 0 {
		return nil, fmt.Errorf("no processes in ps output")
	}
	return tree, nil
}

// descendants returns every process below pid, excluding pid itself.
func (t *processTree) descendants(pid int) []procInfo {
	var out []procInfo
	seen := map[int]bool{pid: true}
	queue := []int{pid}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.children[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, t.procs[child])
			queue = append(queue, child)
		}
	}
	return out
}

// usage sums memory (MB) and CPU over pid and its descendants.
func (t *processTree) usage(pid int) (memoryMB, cpuPercent float64, err error) {
	root, ok := t.procs[pid]
	if !ok {
		return 0, 0, fmt.Errorf("process %d not found", pid)
	}
	rss, cpu := root.rss, root.cpu
	for _, p := range t.descendants(pid) {
		rss += p.rss
		cpu += p.cpu
	}
	return rss / 1024, cpu, nil
}

// ProcessSampler samples a process tree with ps(1).
type ProcessSampler struct {
	// run returns the ps listing; replaced in tests.
	run func(ctx context.Context) (string, error)
}

// NewProcessSampler returns a sampler backed by ps.
func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{run: runPS}
}

func runPS(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ps", "-A", "-o", "pid=,ppid=,comm=,pcpu=,rss=").Output()
	if err != nil {
		return "", fmt.Errorf("failed to list processes: %w", err)
	}
	return string(out), nil
}

// Sample returns the combined RSS in MB and CPU percent of pid and every
// process it spawned.
func (s *ProcessSampler) Sample(ctx context.Context, pid int) (float64, float64, error) {
	out, err := s.run(ctx)
	if err != nil {
		return 0, 0, err
	}
	tree, err := parseProcessTree(out)
	if err != nil {
		return 0, 0, err
	}
	return tree.usage(pid)
}

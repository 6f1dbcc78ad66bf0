package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ByteMirror/overseer/config"
	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/supervisor"
)

// Snapshotter produces status reports. *supervisor.Supervisor implements it.
type Snapshotter interface {
	Snapshot() supervisor.Report
}

// Reporter periodically writes the status report of a running session to a
// file so other processes (`overseer status`) can read it.
type Reporter struct {
	src      Snapshotter
	path     string
	interval time.Duration

	failures *log.Every
	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewReporter creates a reporter writing src's snapshot to path every interval.
func NewReporter(src Snapshotter, path string, interval time.Duration) *Reporter {
	return &Reporter{
		src:      src,
		path:     path,
		interval: interval,
		failures: log.NewEvery(time.Minute),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Path returns the report file location.
func (r *Reporter) Path() string {
	return r.path
}

// Start writes a first report and begins the periodic loop.
func (r *Reporter) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	r.write()
	go r.loop()
}

func (r *Reporter) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.write()
		}
	}
}

// Stop ends the loop and writes a final report. It is safe to call more than
// once, and before Start.
func (r *Reporter) Stop() error {
	var err error
	r.once.Do(func() {
		close(r.stop)
		if r.started.Load() {
			<-r.done
		}
		err = WriteReport(r.path, r.src.Snapshot())
		if err == nil {
			log.InfoLog.Printf("final status report written to %s", r.path)
		}
	})
	return err
}

func (r *Reporter) write() {
	if err := WriteReport(r.path, r.src.Snapshot()); err != nil && r.failures.ShouldLog() {
		log.WarningLog.Printf("failed to write status report: %v", err)
	}
}

// WriteReport atomically replaces path with report as indented JSON.
func WriteReport(path string, report supervisor.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return config.AtomicWriteFile(path, data, 0644)
}

// ReadReport loads a report written by a Reporter.
func ReadReport(path string) (*supervisor.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report supervisor.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

//go:build unix

package orchestrator

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/ByteMirror/overseer/log"
	"github.com/ByteMirror/overseer/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Initialize(false)
	defer log.Close()

	os.Exit(m.Run())
}

func newTestSupervisor(t *testing.T, maxConcurrent int) *supervisor.Supervisor {
	t.Helper()
	limits := supervisor.DefaultLimits()
	limits.MaxConcurrentSubagents = maxConcurrent
	limits.MemoryCheckIntervalSeconds = 3600
	limits.TerminationGraceSeconds = 0.2

	sup, err := supervisor.New(limits)
	require.NoError(t, err)
	t.Cleanup(sup.Shutdown)
	return sup
}

func TestLaunch(t *testing.T) {
	t.Run("returns the exit code and releases the record", func(t *testing.T) {
		sup := newTestSupervisor(t, 2)
		var out bytes.Buffer

		proc, err := Launch(context.Background(), sup, "echo", []string{"sh", "-c", "echo hello; exit 3"}, LaunchOptions{Stdout: &out})
		require.NoError(t, err)
		assert.Contains(t, proc.ID(), "echo-")
		assert.Positive(t, proc.PID())

		code, err := proc.Wait()
		require.NoError(t, err)
		assert.Equal(t, 3, code)
		assert.Equal(t, "hello\n", out.String())
		assert.Equal(t, 0, sup.Snapshot().ActiveSubagents)

		// A second Wait returns the same result.
		code, err = proc.Wait()
		assert.NoError(t, err)
		assert.Equal(t, 3, code)
	})

	t.Run("rejected command never starts", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)
		marker := t.TempDir() + "/started"

		first, err := Launch(context.Background(), sup, "sleeper", []string{"sleep", "30"}, LaunchOptions{})
		require.NoError(t, err)

		_, err = Launch(context.Background(), sup, "second", []string{"touch", marker}, LaunchOptions{})
		assert.ErrorIs(t, err, supervisor.ErrCapacityExceeded)
		assert.NoFileExists(t, marker)

		assert.True(t, sup.Terminate(first.ID(), "test"))
		code, err := first.Wait()
		require.NoError(t, err)
		assert.Equal(t, -1, code)
	})

	t.Run("start failure removes the record", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)

		_, err := Launch(context.Background(), sup, "missing", []string{"/nonexistent/binary"}, LaunchOptions{})
		assert.Error(t, err)
		assert.Equal(t, 0, sup.Snapshot().ActiveSubagents)

		// The slot is free again.
		proc, err := Launch(context.Background(), sup, "true", []string{"true"}, LaunchOptions{})
		require.NoError(t, err)
		_, err = proc.Wait()
		assert.NoError(t, err)
	})

	t.Run("empty command", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)
		_, err := Launch(context.Background(), sup, "", nil, LaunchOptions{})
		assert.Error(t, err)
	})

	t.Run("context cancellation terminates the process group", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)
		ctx, cancel := context.WithCancel(context.Background())

		// The shell waits on a child, so only a group signal ends both.
		proc, err := Launch(ctx, sup, "tree", []string{"sh", "-c", "sleep 30 & wait"}, LaunchOptions{})
		require.NoError(t, err)

		cancel()
		done := make(chan int, 1)
		go func() {
			code, _ := proc.Wait()
			done <- code
		}()
		select {
		case code := <-done:
			assert.NotEqual(t, 0, code)
		case <-time.After(5 * time.Second):
			t.Fatal("process group survived cancellation")
		}
	})

	t.Run("shutdown kills running processes", func(t *testing.T) {
		sup := newTestSupervisor(t, 2)

		proc, err := Launch(context.Background(), sup, "sleeper", []string{"sleep", "30"}, LaunchOptions{})
		require.NoError(t, err)

		waited := make(chan struct{})
		go func() {
			proc.Wait()
			close(waited)
		}()

		sup.Shutdown()
		select {
		case <-waited:
		case <-time.After(5 * time.Second):
			t.Fatal("process survived shutdown")
		}
	})
}

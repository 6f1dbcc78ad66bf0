//go:build unix

package supervisor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSignalsDrains(t *testing.T) {
	s := newTestSupervisor(t, testLimits())
	h := newFakeHandle(false)
	_, err := s.Register("x", h)
	require.NoError(t, err)

	stop := s.HandleSignals(syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not drain after signal")
	}
	assert.Empty(t, s.Snapshot().SubagentDetails)
	assert.Equal(t, int32(1), h.interrupts.Load())
}

func TestHandleSignalsStop(t *testing.T) {
	s := newTestSupervisor(t, testLimits())
	stop := s.HandleSignals(syscall.SIGUSR2)
	stop()
	stop()

	select {
	case <-s.Done():
		t.Fatal("stopping the handler must not shut the supervisor down")
	case <-time.After(50 * time.Millisecond):
	}
}

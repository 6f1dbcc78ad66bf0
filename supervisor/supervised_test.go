package supervisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsResultAndCleansUp(t *testing.T) {
	s := newTestSupervisor(t, testLimits())

	var seenID string
	got, err := Run(context.Background(), s, "summarize", func(ctx context.Context) (string, error) {
		r := s.Snapshot()
		require.Len(t, r.SubagentDetails, 1)
		for id := range r.SubagentDetails {
			seenID = id
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.True(t, strings.HasPrefix(seenID, "summarize-"))
	assert.Empty(t, s.Snapshot().SubagentDetails)
}

func TestRunPropagatesWorkError(t *testing.T) {
	s := newTestSupervisor(t, testLimits())
	boom := errors.New("boom")

	_, err := Run(context.Background(), s, "failing", func(ctx context.Context) (int, error) {
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Snapshot().SubagentDetails)
}

func TestRunCleansUpOnPanic(t *testing.T) {
	s := newTestSupervisor(t, testLimits())

	assert.Panics(t, func() {
		_, _ = Run(context.Background(), s, "panicky", func(ctx context.Context) (int, error) {
			panic("work exploded")
		})
	})
	assert.Empty(t, s.Snapshot().SubagentDetails)
}

func TestRunRejectedWorkNeverRuns(t *testing.T) {
	l := testLimits()
	l.MaxConcurrentSubagents = 1
	s := newTestSupervisor(t, l)

	_, err := s.Register("holder", nil)
	require.NoError(t, err)

	ran := false
	_, err = Run(context.Background(), s, "rejected", func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.False(t, ran)
	assert.Equal(t, []string{"holder"}, ids(s.Snapshot()))
}

func TestRunTerminationCancelsWork(t *testing.T) {
	l := testLimits()
	l.MaxExecutionTimeSeconds = 0.2
	l.MemoryCheckIntervalSeconds = 0.05
	s := newTestSupervisor(t, l)

	_, err := Run(context.Background(), s, "slow", func(ctx context.Context) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(5 * time.Second):
			return 1, nil
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Eventually(t, func() bool {
		return len(s.Snapshot().SubagentDetails) == 0
	}, time.Second, 10*time.Millisecond)
}

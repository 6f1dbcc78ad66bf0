//go:build unix

package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ByteMirror/overseer/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunAll(t *testing.T) {
	t.Run("runs every command and keeps order", func(t *testing.T) {
		sup := newTestSupervisor(t, 2)
		pool := NewPool(sup, LaunchOptions{})

		var cmds []Command
		for i := range 5 {
			cmds = append(cmds, Command{
				Name: fmt.Sprintf("job%d", i),
				Argv: []string{"sh", "-c", fmt.Sprintf("sleep 0.1; exit %d", i)},
			})
		}

		results := pool.RunAll(context.Background(), cmds)
		require.Len(t, results, 5)
		for i, res := range results {
			assert.Equal(t, fmt.Sprintf("job%d", i), res.Name)
			assert.NoError(t, res.Err)
			assert.Equal(t, i, res.ExitCode)
			assert.Equal(t, i != 0, res.Failed())
			assert.NotEmpty(t, res.ID)
		}
		assert.Equal(t, 0, sup.Snapshot().ActiveSubagents)
	})

	t.Run("waits for capacity held elsewhere", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)
		pool := NewPool(sup, LaunchOptions{})
		pool.initialBackoff = 10 * time.Millisecond

		held, err := sup.Register("external", nil)
		require.NoError(t, err)
		go func() {
			time.Sleep(200 * time.Millisecond)
			sup.Cleanup(held)
		}()

		results := pool.RunAll(context.Background(), []Command{{Name: "ok", Argv: []string{"true"}}})
		require.Len(t, results, 1)
		assert.NoError(t, results[0].Err)
		assert.Equal(t, 0, results[0].ExitCode)
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)
		pool := NewPool(sup, LaunchOptions{})
		pool.initialBackoff = 10 * time.Millisecond

		_, err := sup.Register("external", nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		results := pool.RunAll(ctx, []Command{{Name: "blocked", Argv: []string{"true"}}})
		assert.ErrorIs(t, results[0].Err, supervisor.ErrCapacityExceeded)
		assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
		assert.True(t, results[0].Failed())
	})

	t.Run("draining supervisor is final", func(t *testing.T) {
		sup := newTestSupervisor(t, 1)
		sup.Shutdown()

		results := NewPool(sup, LaunchOptions{}).RunAll(context.Background(), []Command{{Name: "late", Argv: []string{"true"}}})
		assert.ErrorIs(t, results[0].Err, supervisor.ErrDraining)
	})
}

package supervisor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a registry id made of name and a short random suffix.
func NewID(name string) string {
	if name == "" {
		name = "subagent"
	}
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}

// Run executes work as a supervised subagent named name. The subagent is
// registered under a fresh id and always cleaned up when Run returns, on
// success, on error, on panic, and when registration is rejected. A rejected
// registration returns an error wrapping ErrCapacityExceeded and work never
// runs. Terminating the subagent cancels the context passed to work.
func Run[T any](ctx context.Context, s *Supervisor, name string, work func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if name == "" {
		name = "subagent"
	}
	id := NewID(name)
	defer s.Cleanup(id)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closed before Cleanup runs, marking the work as finished normally.
	done := make(chan struct{})
	defer close(done)

	if _, err := s.Register(id, NewCancelHandle(cancel, done)); err != nil {
		return zero, fmt.Errorf("failed to start %s: %w", name, err)
	}
	return work(workCtx)
}

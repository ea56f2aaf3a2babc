package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SpawnFunc starts a publisher. It is only called by the caller that won the
// election.
type SpawnFunc func(ctx context.Context) error

// EnsurePublisher starts a publisher when none is alive. Concurrent callers
// race on a set-if-absent of the lock key; only the winner spawns, so at most
// one publisher is started per LockTTL window. It reports whether this caller
// spawned.
func EnsurePublisher(ctx context.Context, f *Feed, spawn SpawnFunc) (bool, error) {
	alive, err := f.PublisherAlive(ctx)
	if err != nil {
		return false, fmt.Errorf("check publisher liveness: %w", err)
	}
	if alive {
		return false, nil
	}

	token := uuid.NewString()
	won, err := f.store.SetNX(ctx, KeyPublisherLock, []byte(token), LockTTL)
	if err != nil {
		return false, fmt.Errorf("acquire publisher lock: %w", err)
	}
	if !won {
		return false, nil
	}

	if err := spawn(ctx); err != nil {
		return false, fmt.Errorf("spawn publisher: %w", err)
	}
	return true, nil
}

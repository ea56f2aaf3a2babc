// Package store is the latest-value key/value layer that decouples the
// publisher's cadence from the stream servers'. Every write overwrites the
// previous value; there is no history and no queue.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key was never written or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the narrow storage port shared by the publisher and stream servers.
type Store interface {
	// Get returns the current value of key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX writes key only if it is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

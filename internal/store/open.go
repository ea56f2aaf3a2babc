package store

import (
	"context"
	"fmt"
)

// Open returns the named backend. Redis is pinged before it is returned.
// The close function is never nil.
func Open(ctx context.Context, backend string, opts RedisOptions) (Store, func() error, error) {
	nop := func() error { return nil }
	switch backend {
	case "memory":
		return NewMemoryStore(), nop, nil
	case "redis", "":
		rs := NewRedisStore(opts)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nop, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		return rs, rs.Close, nil
	default:
		return nil, nop, fmt.Errorf("unknown store backend %q", backend)
	}
}

package ratelimit

import (
	"context"

	"github.com/tutorgate/tutorgate/internal/storage"
)

// Store owns the identity -> quota mapping. Update must apply fn to the
// identity's quota (creating it on first use) as a single critical
// section so concurrent Admit calls for the same identity cannot
// interleave their check and commit phases.
type Store interface {
	Update(ctx context.Context, identity string, fn func(*Quota)) error

	// Peek returns a copy of the identity's quota, or found=false if the
	// identity has never been seen. It never creates state.
	Peek(ctx context.Context, identity string) (quota *Quota, found bool, err error)
}

// NewStore picks the store backend by name.
func NewStore(kind string, maxIdentities int, redis *storage.RedisClient) Store {
	switch kind {
	case "redis":
		if redis != nil {
			return NewRedisStore(redis)
		}
		return NewMemoryStore(maxIdentities)
	default:
		return NewMemoryStore(maxIdentities)
	}
}

package ratelimit

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore keeps quotas in process memory, bounded by an LRU so a
// stream of one-off identities cannot grow the map forever. Evicting an
// identity only hands it a fresh quota on its next request.
type MemoryStore struct {
	mu     sync.Mutex
	quotas *lru.Cache[string, *Quota]
}

func NewMemoryStore(maxIdentities int) *MemoryStore {
	if maxIdentities <= 0 {
		maxIdentities = 10000
	}

	// Error only fires for a non-positive size
	quotas, _ := lru.New[string, *Quota](maxIdentities)

	return &MemoryStore{quotas: quotas}
}

func (s *MemoryStore) Update(ctx context.Context, identity string, fn func(*Quota)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas.Get(identity)
	if !ok {
		quota = &Quota{}
		s.quotas.Add(identity, quota)
	}

	fn(quota)
	return nil
}

func (s *MemoryStore) Peek(ctx context.Context, identity string) (*Quota, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas.Peek(identity)
	if !ok {
		return nil, false, nil
	}

	copied := *quota
	return &copied, true, nil
}

// Len reports how many identities are currently tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotas.Len()
}

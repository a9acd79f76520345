package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

type shard[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
}

// MemoryStore is an in-process Store split into independently locked shards,
// so unrelated keys rarely share a lock. Expired entries are dropped lazily on
// access and by Sweep.
type MemoryStore[V any] struct {
	clock  Clock
	shards [shardCount]*shard[V]
}

// NewMemoryStore creates an empty store reading time from clock.
func NewMemoryStore[V any](clock Clock) *MemoryStore[V] {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &MemoryStore[V]{clock: clock}
	for i := range s.shards {
		s.shards[i] = &shard[V]{entries: make(map[string]entry[V])}
	}
	return s
}

func (s *MemoryStore[V]) shard(key string) *shard[V] {
	return s.shards[xxhash.Sum64String(key)%shardCount]
}

func (s *MemoryStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	sh := s.shard(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return zero, false, nil
	}

	now := s.clock.Now()
	if !e.expired(now) {
		return e.value, true, nil
	}

	sh.mu.Lock()
	// Another writer may have replaced the entry since the read lock was dropped.
	if cur, ok := sh.entries[key]; ok && cur.expired(now) {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()
	return zero, false, nil
}

func (s *MemoryStore[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.entries[key] = entry[V]{value: value, createdAt: s.clock.Now(), ttl: ttl}
	sh.mu.Unlock()
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *MemoryStore[V]) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if e.expired(now) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

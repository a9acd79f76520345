package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/michaelbrown/gauntlet/internal/metrics"
)

// DefaultTTL is how long a successful result stays servable.
const DefaultTTL = 60 * time.Second

// Func is the operation a Memo wraps.
type Func[K, V any] func(ctx context.Context, key K) (V, error)

// Memo memoizes successful results of fn per key value.
//
// Keys are compared structurally through their JSON encoding. Failures are
// never stored. Concurrent calls for one key share a single invocation of fn;
// calls for different keys never wait on each other. A caller whose context
// ends stops waiting, but the shared invocation runs to completion.
type Memo[K, V any] struct {
	name  string
	ttl   time.Duration
	store Store[V]
	fn    Func[K, V]
	group singleflight.Group
	log   zerolog.Logger
}

// NewMemo wraps fn. name prefixes every key and labels metrics.
func NewMemo[K, V any](name string, ttl time.Duration, store Store[V], log zerolog.Logger, fn Func[K, V]) *Memo[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memo[K, V]{
		name:  name,
		ttl:   ttl,
		store: store,
		fn:    fn,
		log:   log.With().Str("cache", name).Logger(),
	}
}

// Get returns the stored result for key or computes it.
func (m *Memo[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	k, err := m.key(key)
	if err != nil {
		return zero, err
	}

	if v, ok := m.lookup(ctx, k); ok {
		metrics.CacheLookups.WithLabelValues(m.name, "hit").Inc()
		return v, nil
	}

	ch := m.group.DoChan(k, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)

		// A flight that finished just before this one began has already stored its result.
		if v, ok := m.lookup(flightCtx, k); ok {
			return v, nil
		}

		v, err := m.fn(flightCtx, key)
		if err != nil {
			return nil, err
		}
		if err := m.store.Set(flightCtx, k, v, m.ttl); err != nil {
			m.log.Warn().Err(err).Msg("storing result")
		}
		return v, nil
	})

	select {
	case res := <-ch:
		result := "miss"
		if res.Shared {
			result = "shared"
		}
		if res.Err != nil {
			result = "error"
		}
		metrics.CacheLookups.WithLabelValues(m.name, result).Inc()

		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek returns the stored result for key without computing it.
func (m *Memo[K, V]) Peek(ctx context.Context, key K) (V, bool) {
	k, err := m.key(key)
	if err != nil {
		var zero V
		return zero, false
	}
	return m.lookup(ctx, k)
}

func (m *Memo[K, V]) lookup(ctx context.Context, k string) (V, bool) {
	v, ok, err := m.store.Get(ctx, k)
	if err != nil {
		m.log.Warn().Err(err).Msg("reading cached result")
		return v, false
	}
	return v, ok
}

func (m *Memo[K, V]) key(key K) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encoding %s cache key: %w", m.name, err)
	}
	return m.name + ":" + string(data), nil
}

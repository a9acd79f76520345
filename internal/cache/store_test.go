package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	clock := newManualClock()
	s := NewMemoryStore[string](clock)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry dropped on access")
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := newManualClock()
	s := NewMemoryStore[int](clock)
	ctx := context.Background()

	for i := range 10 {
		s.Set(ctx, fmt.Sprintf("short-%d", i), i, time.Second)
	}
	s.Set(ctx, "long", 1, time.Hour)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 10, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

type payload struct {
	Stdout string  `json:"stdout"`
	Stderr *string `json:"stderr"`
}

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisStore(t *testing.T) {
	mr, rdb := testRedis(t)
	s := NewRedisStore[payload](rdb, "gauntlet:")
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	stderr := "warning"
	require.NoError(t, s.Set(ctx, "k", payload{Stdout: "6", Stderr: &stderr}, time.Minute))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "6", got.Stdout)
	require.NotNil(t, got.Stderr)
	assert.Equal(t, "warning", *got.Stderr)

	mr.FastForward(time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoWithRedisStore(t *testing.T) {
	_, rdb := testRedis(t)
	var calls atomic.Int32

	newMemo := func() *Memo[request, payload] {
		return NewMemo("execute", DefaultTTL, NewRedisStore[payload](rdb, "gauntlet:"), zerolog.Nop(),
			func(ctx context.Context, r request) (payload, error) {
				calls.Add(1)
				return payload{Stdout: r.Code}, nil
			})
	}

	// Two memos stand in for two replicas sharing one Redis.
	first, second := newMemo(), newMemo()

	v, err := first.Get(context.Background(), request{Code: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", v.Stdout)

	v, err = second.Get(context.Background(), request{Code: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", v.Stdout)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoStoreFailureFallsThrough(t *testing.T) {
	mr, rdb := testRedis(t)
	mr.Close()

	m := NewMemo("execute", DefaultTTL, NewRedisStore[payload](rdb, "gauntlet:"), zerolog.Nop(),
		func(ctx context.Context, r request) (payload, error) {
			return payload{Stdout: "computed"}, nil
		})

	v, err := m.Get(context.Background(), request{Code: "a"})
	require.NoError(t, err)
	assert.Equal(t, "computed", v.Stdout)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type request struct {
	Code  string  `json:"code"`
	Input *string `json:"input"`
}

func newTestMemo[V any](clock Clock, fn Func[request, V]) *Memo[request, V] {
	return NewMemo("test", DefaultTTL, NewMemoryStore[V](clock), zerolog.Nop(), fn)
}

func TestMemoSingleFlight(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	m := newTestMemo(newManualClock(), func(ctx context.Context, r request) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "out:" + r.Code, nil
	})

	const callers = 20
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(context.Background(), request{Code: "p 1"})
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "out:p 1", r)
	}
}

func TestMemoStructuralKeys(t *testing.T) {
	var calls atomic.Int32
	m := newTestMemo(newManualClock(), func(ctx context.Context, r request) (string, error) {
		calls.Add(1)
		return r.Code, nil
	})

	a, b := "1\n2", "1\n2"
	_, err := m.Get(context.Background(), request{Code: "x", Input: &a})
	require.NoError(t, err)
	_, err = m.Get(context.Background(), request{Code: "x", Input: &b})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "equal values behind different pointers share an entry")

	_, err = m.Get(context.Background(), request{Code: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "absent input is a different key")
}

func TestMemoFailuresNotCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("engine down")
	m := newTestMemo(newManualClock(), func(ctx context.Context, r request) (string, error) {
		if calls.Add(1) <= 2 {
			return "", boom
		}
		return "ok", nil
	})

	for range 2 {
		_, err := m.Get(context.Background(), request{Code: "c"})
		assert.ErrorIs(t, err, boom)
	}

	v, err := m.Get(context.Background(), request{Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	v, err = m.Get(context.Background(), request{Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMemoTTL(t *testing.T) {
	clock := newManualClock()
	var calls atomic.Int32
	m := newTestMemo(clock, func(ctx context.Context, r request) (int32, error) {
		return calls.Add(1), nil
	})
	ctx := context.Background()

	v, _ := m.Get(ctx, request{Code: "c"})
	assert.Equal(t, int32(1), v)

	clock.Advance(59 * time.Second)
	v, _ = m.Get(ctx, request{Code: "c"})
	assert.Equal(t, int32(1), v, "entry still fresh")

	clock.Advance(time.Second)
	v, _ = m.Get(ctx, request{Code: "c"})
	assert.Equal(t, int32(2), v, "entry expired at exactly the TTL")
}

func TestMemoDistinctKeysDoNotBlock(t *testing.T) {
	blockA := make(chan struct{})
	startedA := make(chan struct{})
	m := newTestMemo(newManualClock(), func(ctx context.Context, r request) (string, error) {
		if r.Code == "a" {
			close(startedA)
			<-blockA
		}
		return r.Code, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Get(context.Background(), request{Code: "a"})
	}()
	<-startedA

	v, err := m.Get(context.Background(), request{Code: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	close(blockA)
	<-done
}

func TestMemoCallerCancelDoesNotCancelFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var flightErr atomic.Value
	var calls atomic.Int32

	m := newTestMemo(newManualClock(), func(ctx context.Context, r request) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			flightErr.Store(err)
		}
		return "done", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, request{Code: "slow"})
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		v, err := m.Get(context.Background(), request{Code: "slow"})
		return err == nil && v == "done"
	}, time.Second, 10*time.Millisecond)

	assert.Nil(t, flightErr.Load(), "flight context must not be cancelled")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoUnitKey(t *testing.T) {
	var calls atomic.Int32
	m := NewMemo("runtimes", DefaultTTL, NewMemoryStore[[]string](nil), zerolog.Nop(),
		func(ctx context.Context, _ struct{}) ([]string, error) {
			calls.Add(1)
			return []string{"ruby"}, nil
		})

	for range 3 {
		v, err := m.Get(context.Background(), struct{}{})
		require.NoError(t, err)
		assert.Equal(t, []string{"ruby"}, v)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoPeek(t *testing.T) {
	clock := newManualClock()
	var calls atomic.Int32
	m := newTestMemo(clock, func(ctx context.Context, r request) (string, error) {
		calls.Add(1)
		return r.Code, nil
	})
	ctx := context.Background()

	_, ok := m.Peek(ctx, request{Code: "a"})
	assert.False(t, ok)

	_, err := m.Get(ctx, request{Code: "a"})
	require.NoError(t, err)

	v, ok := m.Peek(ctx, request{Code: "a"})
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	clock.Advance(DefaultTTL + time.Second)
	_, ok = m.Peek(ctx, request{Code: "a"})
	assert.False(t, ok, "expired entries are not returned")
	assert.Equal(t, int32(1), calls.Load())
}

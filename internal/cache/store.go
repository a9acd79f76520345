// Package cache provides a time-boxed, single-flight memoization layer and the
// stores it keeps results in.
package cache

import (
	"context"
	"time"
)

// Clock reports the current time. Stores read it when recording and checking entry age.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store holds successful results under a string key for a bounded time.
// A missing or expired key reports ok == false.
type Store[V any] interface {
	Get(ctx context.Context, key string) (value V, ok bool, err error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
}

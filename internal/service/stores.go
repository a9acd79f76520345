package service

import (
	"github.com/redis/go-redis/v9"

	"github.com/michaelbrown/gauntlet/internal/cache"
	"github.com/michaelbrown/gauntlet/internal/catalog"
	"github.com/michaelbrown/gauntlet/internal/dispatch"
	"github.com/michaelbrown/gauntlet/internal/harness"
)

// Stores are the cache backends for the three memoized operations.
type Stores struct {
	Runtimes   cache.Store[[]catalog.Runtime]
	Executions cache.Store[dispatch.Execution]
	Results    cache.Store[harness.Result]
}

// MemoryStores keeps every cache in process.
func MemoryStores(clock cache.Clock) Stores {
	return Stores{
		Runtimes:   cache.NewMemoryStore[[]catalog.Runtime](clock),
		Executions: cache.NewMemoryStore[dispatch.Execution](clock),
		Results:    cache.NewMemoryStore[harness.Result](clock),
	}
}

// RedisStores shares every cache between replicas through rdb.
func RedisStores(rdb redis.UniversalClient, prefix string) Stores {
	return Stores{
		Runtimes:   cache.NewRedisStore[[]catalog.Runtime](rdb, prefix+"runtimes:"),
		Executions: cache.NewRedisStore[dispatch.Execution](rdb, prefix+"exec:"),
		Results:    cache.NewRedisStore[harness.Result](rdb, prefix+"tests:"),
	}
}

type sweeper interface {
	Sweep() int
}

// Sweep drops expired entries from the stores that hold them in process and
// returns how many were removed. Redis expires keys itself.
func (s Stores) Sweep() int {
	removed := 0
	for _, st := range []any{s.Runtimes, s.Executions, s.Results} {
		if sw, ok := st.(sweeper); ok {
			removed += sw.Sweep()
		}
	}
	return removed
}

// Package catalog lists the runtimes installed on the execution engine and
// resolves language/version queries against them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/michaelbrown/gauntlet/internal/cache"
	"github.com/michaelbrown/gauntlet/internal/engine"
)

var ErrRuntimeNotFound = errors.New("runtime not found")

// Runtime is an installed (language, version) pair with its aliases.
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
}

// Lister fetches the engine's runtime listing.
type Lister interface {
	Runtimes(ctx context.Context) ([]engine.Runtime, error)
}

// Catalog serves the runtime listing from a memoized snapshot.
type Catalog struct {
	runtimes *cache.Memo[struct{}, []Runtime]
}

// New creates a Catalog. Snapshots are kept in store for ttl.
func New(lister Lister, store cache.Store[[]Runtime], ttl time.Duration, log zerolog.Logger) *Catalog {
	fetch := func(ctx context.Context, _ struct{}) ([]Runtime, error) {
		rts, err := lister.Runtimes(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching runtimes: %w", err)
		}
		out := make([]Runtime, len(rts))
		for i, r := range rts {
			out[i] = Runtime{Language: r.Language, Version: r.Version, Aliases: r.Aliases}
		}
		return out, nil
	}
	return &Catalog{
		runtimes: cache.NewMemo("runtimes", ttl, store, log, fetch),
	}
}

// Runtimes returns the current snapshot of installed runtimes.
func (c *Catalog) Runtimes(ctx context.Context) ([]Runtime, error) {
	return c.runtimes.Get(ctx, struct{}{})
}

// Resolve picks the runtime matching language and, when non-nil, version.
func (c *Catalog) Resolve(ctx context.Context, language string, version *string) (Runtime, error) {
	rts, err := c.Runtimes(ctx)
	if err != nil {
		return Runtime{}, err
	}
	return Find(rts, language, version)
}

// Cached resolves against the stored snapshot only. It reports false when no
// snapshot is held or nothing in it matches; the engine is never contacted.
func (c *Catalog) Cached(ctx context.Context, language string, version *string) (Runtime, bool) {
	rts, ok := c.runtimes.Peek(ctx, struct{}{})
	if !ok {
		return Runtime{}, false
	}
	rt, err := Find(rts, language, version)
	return rt, err == nil
}

// Find returns the first runtime whose version equals version exactly (when
// given) and whose language or one of whose aliases equals language, ignoring case.
func Find(runtimes []Runtime, language string, version *string) (Runtime, error) {
	for _, r := range runtimes {
		if version != nil && r.Version != *version {
			continue
		}
		if r.matches(language) {
			return r, nil
		}
	}

	if version != nil {
		return Runtime{}, fmt.Errorf("%w: couldn't find '%s' language which has the '%s' version", ErrRuntimeNotFound, language, *version)
	}
	return Runtime{}, fmt.Errorf("%w: couldn't find '%s' language", ErrRuntimeNotFound, language)
}

func (r Runtime) matches(language string) bool {
	if strings.EqualFold(r.Language, language) {
		return true
	}
	for _, a := range r.Aliases {
		if strings.EqualFold(a, language) {
			return true
		}
	}
	return false
}

package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/gauntlet/internal/cache"
	"github.com/michaelbrown/gauntlet/internal/engine"
)

func ptr(s string) *string { return &s }

var sample = []Runtime{
	{Language: "ruby", Version: "2.7.4", Aliases: []string{"rb", "ruby2"}},
	{Language: "ruby", Version: "3.0.1", Aliases: []string{"rb"}},
	{Language: "javascript", Version: "16.3.0", Aliases: []string{"node-javascript", "JS", "node"}},
	{Language: "c++", Version: "10.2.0", Aliases: []string{"cpp", "g++"}},
}

func TestFind(t *testing.T) {
	tests := []struct {
		name        string
		language    string
		version     *string
		wantVersion string
		wantLang    string
	}{
		{name: "exact language", language: "ruby", wantLang: "ruby", wantVersion: "2.7.4"},
		{name: "language case folded", language: "RuBy", wantLang: "ruby", wantVersion: "2.7.4"},
		{name: "alias", language: "cpp", wantLang: "c++", wantVersion: "10.2.0"},
		{name: "alias case folded both ways", language: "js", wantLang: "javascript", wantVersion: "16.3.0"},
		{name: "alias upper query", language: "NODE", wantLang: "javascript", wantVersion: "16.3.0"},
		{name: "pinned version", language: "rb", version: ptr("3.0.1"), wantLang: "ruby", wantVersion: "3.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(sample, tt.language, tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLang, got.Language)
			assert.Equal(t, tt.wantVersion, got.Version)
		})
	}
}

func TestFindNotFound(t *testing.T) {
	_, err := Find(sample, "ruby", ptr("9.9.9"))
	require.ErrorIs(t, err, ErrRuntimeNotFound)
	assert.Contains(t, err.Error(), "ruby")
	assert.Contains(t, err.Error(), "9.9.9")

	_, err = Find(sample, "cobol", nil)
	require.ErrorIs(t, err, ErrRuntimeNotFound)
	assert.Contains(t, err.Error(), "'cobol' language")
	assert.NotContains(t, err.Error(), "version")

	// Versions compare exactly, not by prefix or case.
	_, err = Find(sample, "ruby", ptr("3.0"))
	assert.ErrorIs(t, err, ErrRuntimeNotFound)
}

type fakeLister struct {
	calls atomic.Int32
	rts   []engine.Runtime
	err   error
}

func (f *fakeLister) Runtimes(ctx context.Context) ([]engine.Runtime, error) {
	f.calls.Add(1)
	return f.rts, f.err
}

func TestCatalogMemoizesListing(t *testing.T) {
	lister := &fakeLister{rts: []engine.Runtime{
		{Language: "ruby", Version: "3.0.1", Aliases: []string{"rb"}, Runtime: "mri"},
	}}
	c := New(lister, cache.NewMemoryStore[[]Runtime](nil), cache.DefaultTTL, zerolog.Nop())
	ctx := context.Background()

	rts, err := c.Runtimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Runtime{{Language: "ruby", Version: "3.0.1", Aliases: []string{"rb"}}}, rts)

	rt, err := c.Resolve(ctx, "RB", nil)
	require.NoError(t, err)
	assert.Equal(t, "3.0.1", rt.Version)

	assert.Equal(t, int32(1), lister.calls.Load())
}

func TestCatalogPropagatesEngineErrors(t *testing.T) {
	lister := &fakeLister{err: engine.ErrUnreachable}
	c := New(lister, cache.NewMemoryStore[[]Runtime](nil), cache.DefaultTTL, zerolog.Nop())

	_, err := c.Resolve(context.Background(), "ruby", nil)
	assert.True(t, errors.Is(err, engine.ErrUnreachable))

	_, err = c.Runtimes(context.Background())
	assert.ErrorIs(t, err, engine.ErrUnreachable)
	assert.Equal(t, int32(2), lister.calls.Load(), "failures are not cached")
}

func TestCatalogCachedNeverFetches(t *testing.T) {
	lister := &fakeLister{rts: []engine.Runtime{
		{Language: "ruby", Version: "3.0.1", Aliases: []string{"rb"}},
	}}
	c := New(lister, cache.NewMemoryStore[[]Runtime](nil), cache.DefaultTTL, zerolog.Nop())
	ctx := context.Background()

	_, ok := c.Cached(ctx, "ruby", nil)
	assert.False(t, ok, "no snapshot held yet")
	assert.Equal(t, int32(0), lister.calls.Load())

	_, err := c.Runtimes(ctx)
	require.NoError(t, err)

	rt, ok := c.Cached(ctx, "RB", nil)
	require.True(t, ok)
	assert.Equal(t, "ruby", rt.Language)

	_, ok = c.Cached(ctx, "cobol", nil)
	assert.False(t, ok)
	assert.Equal(t, int32(1), lister.calls.Load())
}

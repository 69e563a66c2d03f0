package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingGetter struct {
	calls map[string]int
	fail  bool
}

func (g *countingGetter) Get(_ context.Context, rawURL string, _ http.Header) ([]byte, error) {
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	g.calls[rawURL]++
	if g.fail {
		return nil, errors.New("boom")
	}
	return []byte(rawURL), nil
}

func TestGet_ServesFromCacheUntilExpiry(t *testing.T) {
	inner := &countingGetter{}
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	c := &Getter{G: inner, TTL: time.Minute, now: func() time.Time { return now }}

	for i := 0; i < 3; i++ {
		b, err := c.Get(t.Context(), "https://example/a", nil)
		require.NoError(t, err)
		require.Equal(t, "https://example/a", string(b))
	}
	require.Equal(t, 1, inner.calls["https://example/a"])

	now = now.Add(2 * time.Minute)
	_, err := c.Get(t.Context(), "https://example/a", nil)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls["https://example/a"])
}

func TestGet_ErrorsAreNotCached(t *testing.T) {
	inner := &countingGetter{fail: true}
	c := &Getter{G: inner, TTL: time.Minute}

	_, err := c.Get(t.Context(), "u", nil)
	require.Error(t, err)
	_, err = c.Get(t.Context(), "u", nil)
	require.Error(t, err)
	require.Equal(t, 2, inner.calls["u"])
	require.Zero(t, c.Len())
}

func TestGet_MaxItemsCapsSize(t *testing.T) {
	inner := &countingGetter{}
	c := &Getter{G: inner, TTL: time.Minute, MaxItems: 2}

	for _, u := range []string{"a", "b", "c", "d"} {
		_, err := c.Get(t.Context(), u, nil)
		require.NoError(t, err)
	}
	require.LessOrEqual(t, c.Len(), 2)

	// the latest entry always survives eviction
	_, err := c.Get(t.Context(), "d", nil)
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls["d"])
}

func TestGet_ZeroTTLPassesThrough(t *testing.T) {
	inner := &countingGetter{}
	c := &Getter{G: inner}

	_, _ = c.Get(t.Context(), "u", nil)
	_, _ = c.Get(t.Context(), "u", nil)
	require.Equal(t, 2, inner.calls["u"])
}

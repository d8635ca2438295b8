package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAt(t *testing.T, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(ttl)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_GetSet(t *testing.T) {
	s, _ := newAt(t, time.Minute)

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("k", 42)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestStore_TTLExpiry(t *testing.T) {
	s, now := newAt(t, time.Minute)

	s.Set("k", "v")

	*now = now.Add(59 * time.Second)
	_, ok := s.Get("k")
	assert.True(t, ok, "entry should still be live just before the TTL")

	*now = now.Add(2 * time.Second)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestStore_InvalidateAndReset(t *testing.T) {
	s, _ := newAt(t, time.Minute)

	s.Set("a", 1)
	s.Set("b", 2)

	s.Invalidate("a")
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("b")
	assert.True(t, ok)

	s.Reset()
	_, ok = s.Get("b")
	assert.False(t, ok)
}

func TestStore_Sweep(t *testing.T) {
	s, now := newAt(t, time.Minute)

	s.Set("old", 1)
	s.SetTTL("long", 2, time.Hour)

	*now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, s.Sweep())

	_, ok := s.Get("long")
	assert.True(t, ok)
}

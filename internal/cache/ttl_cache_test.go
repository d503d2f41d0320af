package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]().WithNow(func() time.Time { return now })

	c.Set("usd", 34, time.Minute)
	v, ok := c.Get("usd")
	assert.True(t, ok)
	assert.Equal(t, 34, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("usd")
	assert.False(t, ok)
}

func TestTTLCachePeekReturnsStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]().WithNow(func() time.Time { return now })

	c.Set("eur", 37, time.Minute)
	now = now.Add(time.Hour)

	v, ok := c.Peek("eur")
	assert.True(t, ok)
	assert.Equal(t, 37, v)
}

func TestTTLCacheGetKeepsExpiredEntryForPeek(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]().WithNow(func() time.Time { return now })

	c.Set("k", 42, time.Hour)
	now = now.Add(2 * time.Hour)

	_, fresh := c.Get("k")
	assert.False(t, fresh)

	v, ok := c.Peek("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("k", "v", 0)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_Expiry(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return clock }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Get("b")
	assert.False(t, ok, "non-positive ttl is not stored")

	clock = clock.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry expires at its deadline")
	assert.Zero(t, c.Len())
}

func TestTTLCache_Sweep(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, string]()
	c.now = func() time.Time { return clock }

	c.Set("short", "x", time.Second)
	c.Set("long", "y", time.Hour)
	clock = clock.Add(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	value := []byte(`{"value":35}`)
	require.NoError(t, m.Set(ctx, "org-1|RENEWABLE", value, time.Minute))
	value[0] = 'X'

	got, ok, err := m.Get(ctx, "org-1|RENEWABLE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"value":35}`, string(got))

	_, ok, err = m.Get(ctx, "org-2|RENEWABLE")
	require.NoError(t, err)
	assert.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = m.Get(cancelled, "org-1|RENEWABLE")
	assert.Error(t, err)
}

func TestNewRedis_RequiresAddr(t *testing.T) {
	_, err := NewRedis(RedisOptions{})
	assert.Error(t, err)
}

// TestRedis runs against a live server when GREENRATCHET_TEST_REDIS_ADDR is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("GREENRATCHET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GREENRATCHET_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(RedisOptions{Addr: addr, Prefix: "greenratchet:test:"})
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	key := "org-1|CO2_EMISSIONS|" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, []byte("payload"), time.Minute))
	got, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	assert.Error(t, r.Set(ctx, key, []byte("x"), 0))
}

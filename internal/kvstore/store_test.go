package kvstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness couples a Store with a way to move its notion of time forward.
type harness struct {
	store   Store
	advance func(time.Duration)
}

func newMemoryHarness(t *testing.T) harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return harness{store: NewMemoryStore(WithClock(clock.Now)), advance: clock.Advance}
}

func newRedisHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{
		URL:         "redis://" + mr.Addr(),
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return harness{store: s, advance: mr.FastForward}
}

func TestStores_Contract(t *testing.T) {
	impls := map[string]func(*testing.T) harness{
		"memory": newMemoryHarness,
		"redis":  newRedisHarness,
	}

	for name, mk := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("set then get", func(t *testing.T) {
				h := mk(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("v1"), time.Minute))
				got, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, []byte("v1"), got)
			})

			t.Run("set overwrites", func(t *testing.T) {
				h := mk(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("v1"), time.Minute))
				require.NoError(t, h.store.Set(ctx, "k", []byte("v2"), time.Minute))
				got, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, []byte("v2"), got)
			})

			t.Run("missing key", func(t *testing.T) {
				h := mk(t)
				_, err := h.store.Get(ctx, "nope")
				assert.ErrorIs(t, err, common.ErrNotFound)
				_, err = h.store.TTL(ctx, "nope")
				assert.ErrorIs(t, err, common.ErrNotFound)
			})

			t.Run("expires after ttl", func(t *testing.T) {
				h := mk(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("v"), 30*time.Second))

				h.advance(10 * time.Second)
				_, err := h.store.Get(ctx, "k")
				require.NoError(t, err)

				h.advance(25 * time.Second)
				_, err = h.store.Get(ctx, "k")
				assert.ErrorIs(t, err, common.ErrNotFound)
			})

			t.Run("ttl reported", func(t *testing.T) {
				h := mk(t)
				require.NoError(t, h.store.Set(ctx, "k", []byte("v"), time.Minute))
				d, err := h.store.TTL(ctx, "k")
				require.NoError(t, err)
				assert.Greater(t, d, time.Duration(0))
				assert.LessOrEqual(t, d, time.Minute)

				require.NoError(t, h.store.Set(ctx, "forever", []byte("v"), 0))
				d, err = h.store.TTL(ctx, "forever")
				require.NoError(t, err)
				assert.Equal(t, time.Duration(0), d)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				h := mk(t)
				require.NoError(t, h.store.Set(ctx, "a", []byte("1"), time.Minute))
				require.NoError(t, h.store.Set(ctx, "b", []byte("2"), time.Minute))
				require.NoError(t, h.store.Delete(ctx, "a", "b", "missing"))
				require.NoError(t, h.store.Delete(ctx, "a"))
				require.NoError(t, h.store.Delete(ctx))

				_, err := h.store.Get(ctx, "a")
				assert.ErrorIs(t, err, common.ErrNotFound)
				_, err = h.store.Get(ctx, "b")
				assert.ErrorIs(t, err, common.ErrNotFound)
			})

			t.Run("ping", func(t *testing.T) {
				h := mk(t)
				assert.NoError(t, h.store.Ping(ctx))
			})
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in, 0))
	in[0] = 'x'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	out[1] = 'y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_ClosedIsUnavailable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), common.ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "k", nil, 0), common.ErrUnavailable)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Set(ctx, "k", []byte("v"), 0), context.Canceled)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisStore_UnreachableIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisOptions{
		URL:         "redis://" + addr,
		DialTimeout: 200 * time.Millisecond,
	})
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestRedisStore_ErrorsAfterServerStops(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{
		URL:         "redis://" + mr.Addr(),
		DialTimeout: 200 * time.Millisecond,
		ReadTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	mr.Close()

	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

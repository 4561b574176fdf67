package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"github.com/zamdevio/mdviewer-sub000/internal/store"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func increment(resetAt time.Time) ratelimit.Mutation {
	return func(cur ratelimit.Entry, found bool) (ratelimit.Entry, bool) {
		if !found {
			return ratelimit.Entry{Count: 1, ResetAt: resetAt}, true
		}

		cur.Count++

		return cur, true
	}
}

func read(t *testing.T, s ratelimit.Store, key string) (ratelimit.Entry, bool) {
	t.Helper()

	var (
		entry ratelimit.Entry
		found bool
	)

	err := s.Update(context.Background(), key, func(cur ratelimit.Entry, ok bool) (ratelimit.Entry, bool) {
		entry, found = cur, ok

		return cur, false
	})
	require.NoError(t, err)

	return entry, found
}

func TestRateLimitMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("update persists written entries", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		require.NoError(t, s.Update(ctx, "client1", increment(epoch)))
		require.NoError(t, s.Update(ctx, "client1", increment(epoch)))

		entry, found := read(t, s, "client1")

		assert.True(t, found)
		assert.Equal(t, int64(2), entry.Count)
		assert.Equal(t, epoch, entry.ResetAt)
	})

	t.Run("unwritten key stays absent", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, found := read(t, s, "client1")

		assert.False(t, found)
	})

	t.Run("serializes concurrent updates of one key", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		var wg sync.WaitGroup

		for range 100 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				assert.NoError(t, s.Update(ctx, "client1", increment(epoch)))
			}()
		}

		wg.Wait()

		entry, _ := read(t, s, "client1")
		assert.Equal(t, int64(100), entry.Count)
	})

	t.Run("delete removes the key", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		require.NoError(t, s.Update(ctx, "client1", increment(epoch)))
		require.NoError(t, s.Delete(ctx, "client1"))

		_, found := read(t, s, "client1")
		assert.False(t, found)
		require.NoError(t, s.Delete(ctx, "unknown"))
	})

	t.Run("sweep drops expired windows only", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		require.NoError(t, s.Update(ctx, "old", increment(epoch)))
		require.NoError(t, s.Update(ctx, "fresh", increment(epoch.Add(time.Minute))))

		removed := s.Sweep(epoch.Add(time.Second))

		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, s.Len())

		_, found := read(t, s, "fresh")
		assert.True(t, found)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := s.Update(cancelled, "client1", increment(epoch))

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("janitor stops on shutdown", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()
		s.StartJanitor(time.Hour)

		assert.NoError(t, s.Shutdown())
		assert.NoError(t, s.Shutdown())
	})
}

package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, opts), mr
}

func TestRedisLocker_WithLockRunsAndReleases(t *testing.T) {
	locker, mr := setupRedisLocker(t, DefaultOptions())

	executed := false
	err := locker.WithLock(context.Background(), "lock:payment_intent:abc", func(ctx context.Context) error {
		executed = true
		assert.True(t, mr.Exists("lock:payment_intent:abc"))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, executed)
	assert.False(t, mr.Exists("lock:payment_intent:abc"), "lease should be released")
}

func TestRedisLocker_PropagatesFnError(t *testing.T) {
	locker, _ := setupRedisLocker(t, DefaultOptions())
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "lock:k", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRedisLocker_ContentionReturnsErrNotAcquired(t *testing.T) {
	locker, mr := setupRedisLocker(t, Options{Expiry: 5 * time.Second, Tries: 2, RetryDelay: 10 * time.Millisecond})

	require.NoError(t, mr.Set("lock:busy", "someone-else"))

	err := locker.WithLock(context.Background(), "lock:busy", func(ctx context.Context) error {
		t.Fatal("fn must not run without the lease")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestRedisLocker_SerializesSameKey(t *testing.T) {
	locker, _ := setupRedisLocker(t, Options{Expiry: 5 * time.Second, Tries: 200, RetryDelay: 5 * time.Millisecond})

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "lock:same", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestLockers_RejectEmptyKey(t *testing.T) {
	redisLocker, _ := setupRedisLocker(t, DefaultOptions())
	noop := func(ctx context.Context) error { return nil }

	assert.ErrorIs(t, redisLocker.WithLock(context.Background(), "  ", noop), ErrEmptyKey)
	assert.ErrorIs(t, NewLocalLocker(DefaultOptions()).WithLock(context.Background(), "", noop), ErrEmptyKey)
}

func TestLocalLocker_TimesOutWhileHeld(t *testing.T) {
	locker := NewLocalLocker(Options{Expiry: time.Second, Tries: 2, RetryDelay: 10 * time.Millisecond})

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrNotAcquired)

	close(release)
	require.NoError(t, <-done)

	// Entry is reclaimed once nobody references it.
	locker.mu.Lock()
	assert.Empty(t, locker.entries)
	locker.mu.Unlock()
}

func TestLocalLocker_IndependentKeysDoNotBlock(t *testing.T) {
	locker := NewLocalLocker(Options{Expiry: time.Second, Tries: 1, RetryDelay: 10 * time.Millisecond})

	err := locker.WithLock(context.Background(), "a", func(ctx context.Context) error {
		return locker.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

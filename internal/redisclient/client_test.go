package redisclient

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires REDIS_ADDR")
	}

	c, err := NewClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestAcquireAndReleaseLock(t *testing.T) {
	c := getRedisClient(t)
	ctx := context.Background()
	key := "test:" + uuid.New().String()

	ok, err := c.AcquireLock(ctx, key, "owner-a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, key, "owner-b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, c.ReleaseLock(ctx, key, "owner-b"), ErrLockNotHeld)
	assert.NoError(t, c.ReleaseLock(ctx, key, "owner-a"))
}

func TestItemLockerSerializes(t *testing.T) {
	c := getRedisClient(t)
	locker := NewItemLocker(c, 2*time.Second)
	ctx := context.Background()
	key := "item:" + uuid.New().String()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, key)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestLockName(t *testing.T) {
	assert.Equal(t, "lock:item:Mouse", lockName("item:Mouse"))
}

package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

// ErrLockNotHeld is returned when releasing a lock owned by someone else
var ErrLockNotHeld = errors.New("lock not held")

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// AcquireLock tries once to take lockKey for token
func (c *Client) AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockName(lockKey), token, ttl).Result()
}

// ReleaseLock releases lockKey if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	n, err := c.releaseScript.Run(ctx, c.rdb, []string{lockName(lockKey)}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func lockName(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// ItemLocker serializes stock adjustments of one item across processes
type ItemLocker struct {
	client *Client
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewItemLocker creates a locker whose locks expire after ttl if the holder dies
func NewItemLocker(client *Client, ttl time.Duration) *ItemLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &ItemLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		logger: util.GetLogger(),
	}
}

// Lock blocks until the lock is taken or ctx is done
func (l *ItemLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// released on a fresh context so a cancelled caller still frees the key
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := l.client.ReleaseLock(ctx, key, token); err != nil {
			l.logger.Warn("Failed to release item lock",
				zap.String("key", key),
				zap.Error(err))
		}
	}, nil
}

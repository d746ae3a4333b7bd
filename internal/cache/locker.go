package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "media:sync_lock:"
	defaultLockTTL  = 10 * time.Minute
	lockRetryPeriod = 100 * time.Millisecond
)

// ErrLockTimeout is returned when a lock could not be acquired before ctx ended.
var ErrLockTimeout = errors.New("timed out waiting for item lock")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises work on a media item across processes.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(cfg config.CacheConfig) (*RedisLocker, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}, nil
}

// Lock blocks until the item's lock is held or ctx is done. The returned
// func releases it.
func (l *RedisLocker) Lock(ctx context.Context, itemID int64) (func(), error) {
	key := lockKeyPrefix + strconv.FormatInt(itemID, 10)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryPeriod)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock failed: %w", err)
		}
		if ok {
			return func() {
				// release with a fresh context so a cancelled run still unlocks
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w %d: %v", ErrLockTimeout, itemID, ctx.Err())
		case <-ticker.C:
		}
	}
}

package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
)

const (
	defaultKey = "bookcrawler:run-lock"
	defaultTTL = time.Hour
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockLost is returned by Release when the lock expired before release.
var ErrLockLost = errors.New("run lock expired before release")

// Redis is a Locker backed by SET NX PX on a single key.
type Redis struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	token func() (string, error)
}

var _ Locker = (*Redis)(nil)

// NewRedis builds a Redis locker. ttl bounds how long a crashed holder can
// block other runs; it should exceed the run timeout.
func NewRedis(rdb *redis.Client, key string, ttl time.Duration, ids catalog.IDGenerator) *Redis {
	if key == "" {
		key = defaultKey
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{rdb: rdb, key: key, ttl: ttl, token: ids.NewID}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context) (Lock, error) {
	token, err := r.token()
	if err != nil {
		return nil, fmt.Errorf("run lock token: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, catalog.ErrCrawlInProgress
	}
	return &redisLock{owner: r, token: token}, nil
}

type redisLock struct {
	owner *Redis
	token string
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.owner.rdb, []string{l.owner.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

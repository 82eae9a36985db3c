package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLock keeps overlapping sweeps from running. Holding it is an
// optimisation: the engine expires each row at most once regardless.
type SweepLock interface {
	// TryLock returns ok=false without blocking when another sweep holds
	// the lock. release must be called once when ok is true.
	TryLock(ctx context.Context) (release func() error, ok bool, err error)
}

// LocalLock serialises sweeps within one process.
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock creates an unlocked LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// TryLock implements SweepLock.
func (l *LocalLock) TryLock(context.Context) (func() error, bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return func() error {
		l.mu.Unlock()
		return nil
	}, true, nil
}

// releaseScript deletes the key only if it still holds our token, so a sweep
// that outlived its TTL cannot release a lock another instance now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock serialises sweeps across instances sharing one redis. The key
// expires after ttl so a crashed holder cannot block sweeps forever.
type RedisLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// DefaultRedisLockKey is the key used when none is given.
const DefaultRedisLockKey = "shareledger:sweep-lock"

// NewRedisLock creates a lock on key. An empty key selects
// DefaultRedisLockKey.
func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = DefaultRedisLockKey
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// TryLock implements SweepLock with SET NX PX.
func (l *RedisLock) TryLock(ctx context.Context) (func() error, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() error {
		// The caller's ctx may already be done by the time it releases.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	return release, true, nil
}

// ConnectRedis parses a redis:// URL, falling back to treating it as a bare
// host:port address, and pings the server.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if opt, err := redis.ParseURL(redisURL); err == nil {
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

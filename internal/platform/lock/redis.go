package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

const (
	redisKeyPrefix   = "dosegate:lock:"
	redisPollMin     = 25 * time.Millisecond
	redisPollMax     = 250 * time.Millisecond
	redisReleaseWait = 2 * time.Second
)

// Only the holder's token may delete the key.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every API instance. The TTL
// bounds how long a crashed holder can block a user.
type RedisLocker struct {
	rdb  *goredis.Client
	log  *logger.Logger
	ttl  time.Duration
	wait time.Duration
}

func NewRedisLocker(rdb *goredis.Client, log *logger.Logger, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:  rdb,
		log:  log.With("service", "RedisLocker"),
		ttl:  ttl,
		wait: wait,
	}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := redisKeyPrefix + key
	deadline := time.Now().Add(l.wait)
	backoff := redisPollMin

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > redisPollMax {
			backoff = redisPollMax
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled; release anyway.
			ctx, cancel := context.WithTimeout(context.Background(), redisReleaseWait)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("Redis lock release failed; key will expire", "key", redisKey, "error", err)
			}
		})
	}
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

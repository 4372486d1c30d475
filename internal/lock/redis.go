package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/office-calendar/internal/logging"
)

const keyPrefix = "calendar:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never releases a lock taken over by another process.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every process connected to one Redis.
//
// A held lease is renewed every ttl/3 until released. If renewal fails for
// longer than ttl (Redis unreachable, or the key was lost), another process
// may take the same key while the holder is still committing; there is no
// fencing token, so ttl should comfortably exceed a commit's duration.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	renew  time.Duration
}

// NewRedisLocker builds a locker whose leases expire after ttl unless renewed.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, poll: 25 * time.Millisecond, renew: ttl / 3}
}

// Acquire polls SET NX until the key is free or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = slog.Default()
	}

	// The caller's context may already be cancelled by the time we release.
	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	renewed := make(chan struct{})
	go l.keepAlive(bg, logger, key, redisKey, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			releaseCtx, cancel := context.WithTimeout(bg, time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				logger.WarnContext(releaseCtx, "failed to release room lock", slog.String("key", key), slog.Any("error", err))
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(ctx context.Context, logger *slog.Logger, key, redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if l.renew <= 0 {
		return
	}
	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		renewCtx, cancel := context.WithTimeout(ctx, l.renew)
		n, err := extendScript.Run(renewCtx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			logger.WarnContext(ctx, "failed to renew room lock", slog.String("key", key), slog.Any("error", err))
		case n == 0:
			logger.WarnContext(ctx, "room lock lease lost", slog.String("key", key))
			return
		}
	}
}

// Ping verifies the Redis connection.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

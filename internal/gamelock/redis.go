package gamelock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL   = 5 * time.Second
	minBackoff   = 5 * time.Millisecond
	maxBackoff   = 100 * time.Millisecond
	releaseLimit = 2 * time.Second
)

// release deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every server process pointing at the same Redis.
// The TTL bounds how long a crashed holder can block a game.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

func (r *Redis) Lock(ctx context.Context, gameID int64) (func(), error) {
	k := key(gameID)
	token := uuid.NewString()
	backoff := minBackoff
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: game %d: %v", ErrNotAcquired, gameID, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock game %d: %w", gameID, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: game %d: %v", ErrNotAcquired, gameID, ctx.Err())
		case <-t.C:
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return func() {
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), releaseLimit)
		defer cancel()
		if err := releaseScript.Run(rctx, r.rdb, []string{k}, token).Err(); err != nil {
			r.logger.Warn("game_lock_release_failed", zap.Int64("game_id", gameID), zap.Error(err))
		}
	}, nil
}

// ParseRedisURL turns redis://[:password@]host[:port][/db] into client
// options. The port defaults to 6379 and rediss:// enables TLS.
func ParseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// Dial connects and pings.
func Dial(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := ParseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

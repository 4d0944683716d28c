package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenVersionKeyPrefix = "user:token_version:"
	denyTokenKeyPrefix    = "deny:token:"
	denySentinel          = "1"
)

// RedisSessionRegistry keeps token versions and the denylist in Redis.
// All state lives in the cache, losing it resets versions to zero and
// clears every denial.
type RedisSessionRegistry struct {
	client   redis.Cmdable
	logger   Logger
	failOpen bool
	now      func() time.Time
}

var _ SessionRegistry = (*RedisSessionRegistry)(nil)

// NewRedisSessionRegistry returns a registry backed by client
func NewRedisSessionRegistry(client redis.Cmdable) *RedisSessionRegistry {
	return &RedisSessionRegistry{
		client: client,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger sets the logger
func (r *RedisSessionRegistry) WithLogger(l Logger) *RedisSessionRegistry {
	if l != nil {
		r.logger = l
	}
	return r
}

// WithFailOpen makes IsDenied report false when Redis can not be reached
// instead of failing the request
func (r *RedisSessionRegistry) WithFailOpen(failOpen bool) *RedisSessionRegistry {
	r.failOpen = failOpen
	return r
}

// WithClock overrides the time source used to compute denylist TTLs
func (r *RedisSessionRegistry) WithClock(now func() time.Time) *RedisSessionRegistry {
	if now != nil {
		r.now = now
	}
	return r
}

// TokenVersion returns the stored version, 0 when the user has none
func (r *RedisSessionRegistry) TokenVersion(ctx context.Context, userID int64) (int64, error) {
	val, err := r.client.Get(ctx, TokenVersionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get token version: %v", ErrSessionStore, err)
	}

	version, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: token version %q: %v", ErrSessionStore, val, err)
	}
	return version, nil
}

// IncrementTokenVersion bumps the version and returns the new value
func (r *RedisSessionRegistry) IncrementTokenVersion(ctx context.Context, userID int64) (int64, error) {
	version, err := r.client.Incr(ctx, TokenVersionKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: increment token version: %v", ErrSessionStore, err)
	}
	return version, nil
}

// DenyToken denies jti until expiresAt. Tokens that already expired are
// skipped, there is nothing left to deny.
func (r *RedisSessionRegistry) DenyToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		r.logger.Debug("skip deny for expired token", "jti", jti)
		return nil
	}

	if err := r.client.Set(ctx, DenyTokenKey(jti), denySentinel, ttl).Err(); err != nil {
		return fmt.Errorf("%w: deny token: %v", ErrSessionStore, err)
	}
	return nil
}

// IsDenied reports whether jti is on the denylist
func (r *RedisSessionRegistry) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, DenyTokenKey(jti)).Result()
	if err != nil {
		if r.failOpen {
			r.logger.Warn("denylist lookup failed, admitting token", "jti", jti, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("%w: denylist lookup: %v", ErrSessionStore, err)
	}
	return n > 0, nil
}

// TokenVersionKey is the cache key holding the version for userID
func TokenVersionKey(userID int64) string {
	return tokenVersionKeyPrefix + strconv.FormatInt(userID, 10)
}

// DenyTokenKey is the cache key marking jti as denied
func DenyTokenKey(jti string) string {
	return denyTokenKeyPrefix + jti
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/fern-folio/bookstore-api/internal/pkg/id"
	"github.com/redis/go-redis/v9"
)

// slidingWindow prunes, counts and conditionally appends in one step.
// Scores are Unix microseconds; ZREMRANGEBYSCORE is inclusive, so entries
// with now-score >= window are removed.
//
// KEYS[1] window key
// ARGV[1] now (µs)  ARGV[2] window (µs)  ARGV[3] max requests
// ARGV[4] member    ARGV[5] key TTL (ms)
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count >= limit then
  return {0, count}
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count + 1}
`)

// RedisStore is a Store shared by every replica connected to the same Redis.
// Idle windows expire on their own one window after the last accepted request.
type RedisStore struct {
	rdb    redis.Scripter
	policy Policy
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces window keys (default "ratelimit").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

func NewRedisStore(rdb redis.Scripter, p Policy, opts ...RedisOption) (*RedisStore, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s := &RedisStore{rdb: rdb, policy: p, prefix: "ratelimit"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	ttl := s.policy.Window.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	res, err := slidingWindow.Run(ctx, s.rdb, []string{s.prefix + ":" + key},
		now.UnixMicro(),
		s.policy.Window.Microseconds(),
		s.policy.MaxRequests,
		id.New(),
		ttl,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}
	return Decision{Allowed: res[0] == 1, Count: int(res[1])}, nil
}

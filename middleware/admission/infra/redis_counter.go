package infra

import (
	"context"
	"fmt"
	"time"

	"flux-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// incrScript incrementa e renova a expiração numa única ida ao Redis.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return n
`)

// RedisCounterStore implementa domain.CounterStore em <prefix>:rl:<key>.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

type CounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) CounterOption {
	return func(s *RedisCounterStore) { s.prefix = normalizePrefix(prefix) }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...CounterOption) *RedisCounterStore {
	s := &RedisCounterStore{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (uint64, error) {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	n, err := incrScript.Run(ctx, s.rdb, []string{s.prefix + ":rl:" + key}, ms).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if n < 0 {
		n = 0
	}
	return uint64(n), nil
}

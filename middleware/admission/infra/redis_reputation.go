package infra

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"flux-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// Campos do hash de reputação.
const (
	fieldIsBanned          = "is_banned"
	fieldBanExpiry         = "ban_expiry"
	fieldViolationCount    = "violation_count"
	fieldLastViolationDate = "last_violation_date"
	fieldIsSeamless        = "is_seamless"
	fieldSeamlessExpiry    = "seamless_expiry"
	fieldLastSeen          = "last_seen"
)

// RedisReputationStore guarda um hash por cliente em <prefix>:rep:<identity>.
//
// Booleanos são "0"/"1" e timestamps são segundos unix. Cada escrita é um único
// comando (HSET/HINCRBY) ou um MULTI/EXEC, nunca get+put.
type RedisReputationStore struct {
	rdb    *redis.Client
	prefix string
	// recordTTL > 0 aplica expiração ao hash a cada escrita (higiene, opcional).
	recordTTL time.Duration
}

type ReputationOption func(*RedisReputationStore)

func WithReputationPrefix(prefix string) ReputationOption {
	return func(s *RedisReputationStore) { s.prefix = normalizePrefix(prefix) }
}

func WithRecordTTL(d time.Duration) ReputationOption {
	return func(s *RedisReputationStore) { s.recordTTL = d }
}

func NewRedisReputationStore(rdb *redis.Client, opts ...ReputationOption) *RedisReputationStore {
	s := &RedisReputationStore{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisReputationStore) key(k domain.Key) string {
	return s.prefix + ":rep:" + string(k)
}

func (s *RedisReputationStore) Get(ctx context.Context, k domain.Key) (domain.ReputationRecord, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(k)).Result()
	if err != nil {
		return domain.ReputationRecord{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if len(vals) == 0 {
		return domain.ReputationRecord{}, domain.ErrRecordNotFound
	}
	return parseRecord(k, vals), nil
}

func (s *RedisReputationStore) Touch(ctx context.Context, k domain.Key, at time.Time) error {
	return s.write(ctx, k, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, fieldLastSeen, at.Unix())
	})
}

func (s *RedisReputationStore) AddViolation(ctx context.Context, k domain.Key, day string, at time.Time) (uint64, error) {
	var incr *redis.IntCmd
	err := s.write(ctx, k, func(pipe redis.Pipeliner, key string) {
		incr = pipe.HIncrBy(ctx, key, fieldViolationCount, 1)
		pipe.HSet(ctx, key, fieldLastViolationDate, day, fieldLastSeen, at.Unix())
	})
	if err != nil {
		return 0, err
	}
	n := incr.Val()
	if n < 0 {
		n = 0
	}
	return uint64(n), nil
}

func (s *RedisReputationStore) Ban(ctx context.Context, k domain.Key, until time.Time) error {
	return s.write(ctx, k, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, fieldIsBanned, 1, fieldBanExpiry, until.Unix(), fieldViolationCount, 0)
	})
}

func (s *RedisReputationStore) Unban(ctx context.Context, k domain.Key) error {
	return s.write(ctx, k, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, fieldIsBanned, 0, fieldViolationCount, 0)
	})
}

func (s *RedisReputationStore) SetSeamless(ctx context.Context, k domain.Key, until time.Time) error {
	return s.write(ctx, k, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, fieldIsSeamless, 1, fieldSeamlessExpiry, until.Unix())
	})
}

func (s *RedisReputationStore) ClearSeamless(ctx context.Context, k domain.Key) error {
	return s.write(ctx, k, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, fieldIsSeamless, 0)
	})
}

// List varre <prefix>:rep:* com SCAN. Pensado para o control plane, não para o caminho quente.
func (s *RedisReputationStore) List(ctx context.Context) ([]domain.ReputationRecord, error) {
	match := s.prefix + ":rep:*"
	var keys []string
	iter := s.rdb.Scan(ctx, 0, match, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	sort.Strings(keys)

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if len(keys) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
	}

	out := make([]domain.ReputationRecord, 0, len(keys))
	for i, key := range keys {
		vals := cmds[i].Val()
		if len(vals) == 0 {
			// expirou entre o SCAN e o HGETALL
			continue
		}
		out = append(out, parseRecord(domain.Key(strings.TrimPrefix(key, s.prefix+":rep:")), vals))
	}
	return out, nil
}

// write executa fn dentro de MULTI/EXEC e renova o TTL do hash quando configurado.
func (s *RedisReputationStore) write(ctx context.Context, k domain.Key, fn func(pipe redis.Pipeliner, key string)) error {
	key := s.key(k)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(pipe, key)
		if s.recordTTL > 0 {
			pipe.Expire(ctx, key, s.recordTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func parseRecord(k domain.Key, vals map[string]string) domain.ReputationRecord {
	return domain.ReputationRecord{
		Key:               k,
		IsBanned:          parseBool(vals[fieldIsBanned]),
		BanExpiry:         parseUnix(vals[fieldBanExpiry]),
		ViolationCount:    parseUint(vals[fieldViolationCount]),
		LastViolationDate: vals[fieldLastViolationDate],
		IsSeamless:        parseBool(vals[fieldIsSeamless]),
		SeamlessExpiry:    parseUnix(vals[fieldSeamlessExpiry]),
		LastSeen:          parseUnix(vals[fieldLastSeen]),
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func parseUint(v string) uint64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return uint64(n)
}

func parseUnix(v string) time.Time {
	sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flux-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// Campos agregados do hash total; os demais campos são nomes de Outcome.
const (
	statsFieldAllowed  = "allowed"
	statsFieldDenied   = "denied"
	statsFieldDegraded = "degraded"
)

type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool

	// trackRoutes liga o hash <prefix>:route. Desligado por padrão: o rótulo é
	// limitado (método + prefixo da allow-list), nunca o path cru.
	trackRoutes   bool
	routePrefixes []string
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func WithStatsTrackRoutes(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackRoutes = track }
}

// WithStatsRoutePrefixes define os prefixos de path que viram rótulo de rota.
// Paths fora da lista contam só pelo método.
func WithStatsRoutePrefixes(prefixes ...string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.routePrefixes = cleanRoutePrefixes(prefixes) }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: DefaultPrefix + ":stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := statsFieldDenied
	if ev.Allowed() {
		field = statsFieldAllowed
	}
	outcome := string(ev.Outcome)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)
	if outcome != "" {
		pipe.HIncrBy(ctx, s.totalKey(), outcome, 1)
	}
	if ev.Degraded {
		pipe.HIncrBy(ctx, s.totalKey(), statsFieldDegraded, 1)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if outcome != "" {
			pipe.HIncrBy(ctx, bucketKey, outcome, 1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if s.trackRoutes {
		routeKey := s.prefix + ":route"
		pipe.HIncrBy(ctx, routeKey, routeLabel(ev.Method, ev.Path, s.routePrefixes)+":"+field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, routeKey, s.ttl)
		}
	}

	if s.trackKeys {
		k := strings.TrimSpace(string(ev.Key))
		if k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot lê o hash total.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	vals, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	snap := domain.StatsSnapshot{ByOutcome: make(map[string]int64)}
	for field, raw := range vals {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		switch field {
		case statsFieldAllowed:
			snap.Allowed = n
		case statsFieldDenied:
			snap.Denied = n
		case statsFieldDegraded:
			snap.Degraded = n
		default:
			snap.ByOutcome[field] = n
		}
	}
	return snap, nil
}

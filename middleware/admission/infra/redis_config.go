package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"flux-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// RedisConfigStore guarda a configuração global no hash <prefix>:config
// (campos mode, difficulty, cpu_threshold).
//
// Campo ausente usa o valor padrão daquele campo. Campo presente mas ilegível
// devolve domain.ErrMalformedConfig; quem decide o fallback é o ConfigProvider.
type RedisConfigStore struct {
	rdb *redis.Client
	key string
}

type ConfigOption func(*RedisConfigStore)

func WithConfigPrefix(prefix string) ConfigOption {
	return func(s *RedisConfigStore) { s.key = normalizePrefix(prefix) + ":config" }
}

func NewRedisConfigStore(rdb *redis.Client, opts ...ConfigOption) *RedisConfigStore {
	s := &RedisConfigStore{rdb: rdb, key: DefaultPrefix + ":config"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisConfigStore) GetConfig(ctx context.Context) (domain.GlobalConfig, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return domain.GlobalConfig{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if len(vals) == 0 {
		return domain.GlobalConfig{}, domain.ErrRecordNotFound
	}

	cfg := domain.DefaultGlobalConfig()
	if v, ok := vals["mode"]; ok {
		cfg.Mode = domain.Mode(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := vals["difficulty"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return domain.GlobalConfig{}, fmt.Errorf("%w: difficulty %q", domain.ErrMalformedConfig, v)
		}
		cfg.Difficulty = n
	}
	if v, ok := vals["cpu_threshold"]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return domain.GlobalConfig{}, fmt.Errorf("%w: cpu_threshold %q", domain.ErrMalformedConfig, v)
		}
		cfg.CPUThreshold = f
	}
	if err := cfg.Validate(); err != nil {
		return domain.GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *RedisConfigStore) SaveConfig(ctx context.Context, cfg domain.GlobalConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := s.rdb.HSet(ctx, s.key,
		"mode", string(cfg.Mode),
		"difficulty", cfg.Difficulty,
		"cpu_threshold", strconv.FormatFloat(cfg.CPUThreshold, 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"flux-gateway/middleware/admission/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = NewRedisClient(context.Background(), RedisOptions{})
	assert.Error(t, err)

	mr.Close()
	_, err = NewRedisClient(context.Background(), RedisOptions{Addr: mr.Addr(), PingTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestRedisCounterStore_IncrementAndExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := s.Increment(ctx, "10.0.0.1-1700000000", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), n)
	}
	assert.True(t, mr.Exists("flux:rl:10.0.0.1-1700000000"))
	assert.Equal(t, time.Minute, mr.TTL("flux:rl:10.0.0.1-1700000000"))

	mr.FastForward(61 * time.Second)
	n, err := s.Increment(ctx, "10.0.0.1-1700000000", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestRedisCounterStore_ConcurrentIncrements(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb, WithCounterPrefix("test"))

	const workers, perWorker = 8, 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := s.Increment(context.Background(), "k", time.Minute); err != nil {
					t.Errorf("increment: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	n, err := s.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker+1), n)
}

func TestRedisCounterStore_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb)
	mr.Close()

	_, err := s.Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRedisReputationStore_Lifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisReputationStore(rdb)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := s.Get(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	require.NoError(t, s.Touch(ctx, "10.0.0.1", now))
	rec, err := s.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, now, rec.LastSeen)
	assert.False(t, rec.IsBanned)

	for i := 1; i <= 3; i++ {
		n, err := s.AddViolation(ctx, "10.0.0.1", "2023-11-14", now)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), n)
	}
	assert.Equal(t, "2023-11-14", mr.HGet("flux:rep:10.0.0.1", "last_violation_date"))

	require.NoError(t, s.Ban(ctx, "10.0.0.1", now.Add(24*time.Hour)))
	rec, err = s.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, rec.BanActive(now))
	assert.Zero(t, rec.ViolationCount)
	assert.Equal(t, "1", mr.HGet("flux:rep:10.0.0.1", "is_banned"))
	assert.Equal(t, "1700086400", mr.HGet("flux:rep:10.0.0.1", "ban_expiry"))

	require.NoError(t, s.Unban(ctx, "10.0.0.1"))
	rec, err = s.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, rec.BanActive(now))

	require.NoError(t, s.SetSeamless(ctx, "10.0.0.1", now.Add(time.Hour)))
	rec, err = s.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, rec.SeamlessActive(now))

	require.NoError(t, s.ClearSeamless(ctx, "10.0.0.1"))
	rec, err = s.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, rec.SeamlessActive(now))
}

func TestRedisReputationStore_ReadsForeignEncodings(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisReputationStore(rdb)

	mr.HSet("flux:rep:k", "is_banned", "true", "ban_expiry", "1700000100", "violation_count", "garbage")
	rec, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, rec.IsBanned)
	assert.Equal(t, time.Unix(1_700_000_100, 0), rec.BanExpiry)
	assert.Zero(t, rec.ViolationCount)
}

func TestRedisReputationStore_ListAndTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisReputationStore(rdb, WithReputationPrefix("gw:"), WithRecordTTL(time.Hour))
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.Touch(ctx, "b", now))
	require.NoError(t, s.Touch(ctx, "a", now))
	mr.Set("gw:config", "x")

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.Key("a"), recs[0].Key)
	assert.Equal(t, domain.Key("b"), recs[1].Key)
	assert.Equal(t, time.Hour, mr.TTL("gw:rep:a"))

	mr.FastForward(2 * time.Hour)
	recs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRedisReputationStore_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisReputationStore(rdb)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, err = s.AddViolation(context.Background(), "k", "2023-11-14", time.Now())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRedisConfigStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisConfigStore(rdb)
	ctx := context.Background()

	_, err := s.GetConfig(ctx)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	want := domain.GlobalConfig{Mode: domain.ModeShield, Difficulty: 3, CPUThreshold: 65.5}
	require.NoError(t, s.SaveConfig(ctx, want))
	got, err := s.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	err = s.SaveConfig(ctx, domain.GlobalConfig{Mode: "loud"})
	assert.ErrorIs(t, err, domain.ErrMalformedConfig)
}

func TestRedisConfigStore_PartialAndMalformed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisConfigStore(rdb, WithConfigPrefix("gw"))
	ctx := context.Background()

	mr.HSet("gw:config", "mode", "SHIELD")
	got, err := s.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GlobalConfig{Mode: domain.ModeShield, Difficulty: 4, CPUThreshold: 80}, got)

	mr.HSet("gw:config", "difficulty", "four")
	_, err = s.GetConfig(ctx)
	assert.ErrorIs(t, err, domain.ErrMalformedConfig)

	mr.HSet("gw:config", "difficulty", "2", "cpu_threshold", "hot")
	_, err = s.GetConfig(ctx)
	assert.ErrorIs(t, err, domain.ErrMalformedConfig)

	mr.HSet("gw:config", "cpu_threshold", "70", "mode", "off")
	_, err = s.GetConfig(ctx)
	assert.ErrorIs(t, err, domain.ErrMalformedConfig)
}

package application

import (
	"context"
	"fmt"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

const (
	DefaultMaxViolations = 50
	DefaultBanDuration   = 24 * time.Hour
)

// ViolationTracker acumula rejeições por cliente e escala para ban.
//
// O incremento e o ban são duas atualizações atômicas separadas. Uma queda entre
// as duas só atrasa o ban em mais uma violação.
type ViolationTracker struct {
	Store         domain.ReputationStore
	MaxViolations uint64
	BanDuration   time.Duration
	Timeout       time.Duration
	Logger        *zap.Logger
}

type ViolationResult struct {
	Count     uint64
	Banned    bool
	BanExpiry time.Time
}

func (t ViolationTracker) RecordViolation(ctx context.Context, key domain.Key, today string, now time.Time) (ViolationResult, error) {
	if t.Store == nil {
		return ViolationResult{}, nil
	}
	limit := t.MaxViolations
	if limit == 0 {
		limit = DefaultMaxViolations
	}
	banFor := t.BanDuration
	if banFor <= 0 {
		banFor = DefaultBanDuration
	}

	ctx, cancel := boundedContext(ctx, t.Timeout, DefaultStoreTimeout)
	defer cancel()

	count, err := t.Store.AddViolation(ctx, key, today, now)
	if err != nil {
		return ViolationResult{}, fmt.Errorf("record violation: %w", err)
	}
	res := ViolationResult{Count: count}
	if count <= limit {
		return res, nil
	}

	until := now.Add(banFor)
	if err := t.Store.Ban(ctx, key, until); err != nil {
		return res, fmt.Errorf("apply ban: %w", err)
	}
	res.Banned = true
	res.BanExpiry = until

	nopIfNil(t.Logger).Warn("violation threshold exceeded, client banned",
		zap.String("identity", string(key)),
		zap.Uint64("violations", count),
		zap.Time("ban_expiry", until))
	return res, nil
}

package application

import (
	"context"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

const (
	DefaultNormalBudget   = 5
	DefaultDegradedBudget = 2
)

// AdaptiveLimiter deriva o orçamento de requisições da carga do backend.
//
// Saúde desconhecida é tratada como saúde ruim: timeout ou falha da sonda
// resultam no orçamento degradado.
type AdaptiveLimiter struct {
	Probe          domain.HealthProber
	Timeout        time.Duration
	NormalBudget   int
	DegradedBudget int
	Logger         *zap.Logger
}

func (l AdaptiveLimiter) normal() int {
	if l.NormalBudget <= 0 {
		return DefaultNormalBudget
	}
	return l.NormalBudget
}

func (l AdaptiveLimiter) degraded() int {
	if l.DegradedBudget <= 0 {
		return DefaultDegradedBudget
	}
	return l.DegradedBudget
}

// GetRequestBudget retorna o orçamento e se ele é o degradado.
func (l AdaptiveLimiter) GetRequestBudget(ctx context.Context, cfg domain.GlobalConfig) (int, bool) {
	if l.Probe == nil {
		return l.normal(), false
	}

	ctx, cancel := boundedContext(ctx, l.Timeout, DefaultHealthTimeout)
	defer cancel()

	load, err := l.Probe.Load(ctx)
	if err != nil {
		nopIfNil(l.Logger).Warn("health probe failed, degrading budget", zap.Error(err))
		return l.degraded(), true
	}
	if load > cfg.CPUThreshold {
		nopIfNil(l.Logger).Info("backend load above threshold, degrading budget",
			zap.Float64("load", load), zap.Float64("cpu_threshold", cfg.CPUThreshold))
		return l.degraded(), true
	}
	return l.normal(), false
}

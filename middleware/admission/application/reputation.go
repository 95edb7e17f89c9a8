package application

import (
	"context"
	"errors"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// ReputationGuard consulta o registro de reputação do cliente.
//
// É o primeiro estágio: clientes banidos são rejeitados antes de qualquer outro custo.
// Uma queda do store nunca nega serviço por si só (fail-open).
type ReputationGuard struct {
	Store   domain.ReputationStore
	Timeout time.Duration
	Logger  *zap.Logger
}

func (g ReputationGuard) CheckBan(ctx context.Context, key domain.Key, now time.Time) domain.Standing {
	if g.Store == nil {
		return domain.StandingAllowed
	}

	ctx, cancel := boundedContext(ctx, g.Timeout, DefaultStoreTimeout)
	defer cancel()

	rec, err := g.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			nopIfNil(g.Logger).Warn("reputation lookup failed, failing open",
				zap.String("identity", string(key)), zap.Error(err))
		}
		return domain.StandingAllowed
	}

	// seamless isenta de ban e de throttling
	if rec.SeamlessActive(now) {
		return domain.StandingTrusted
	}
	if rec.BanActive(now) {
		return domain.StandingBanned
	}
	return domain.StandingAllowed
}

// Touch atualiza last_seen. Best-effort: erro só vai para o log.
func (g ReputationGuard) Touch(ctx context.Context, key domain.Key, now time.Time) {
	if g.Store == nil {
		return
	}

	ctx, cancel := boundedContext(ctx, g.Timeout, DefaultStoreTimeout)
	defer cancel()

	if err := g.Store.Touch(ctx, key, now); err != nil {
		nopIfNil(g.Logger).Warn("last_seen update failed",
			zap.String("identity", string(key)), zap.Error(err))
	}
}

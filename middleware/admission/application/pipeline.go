package application

import (
	"context"
	"fmt"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// Stages liga/desliga cada estágio opcional do pipeline.
// A contagem por janela não é opcional.
type Stages struct {
	BanCheck   bool
	Shield     bool
	Adaptive   bool
	Violations bool
}

func AllStages() Stages {
	return Stages{BanCheck: true, Shield: true, Adaptive: true, Violations: true}
}

// Request é o que o pipeline precisa saber de uma requisição.
type Request struct {
	Key      domain.Key
	Solution string
}

// Pipeline encadeia os estágios na ordem fixa
// reputação -> config -> shield -> saúde -> contagem (+violação),
// parando na primeira decisão terminal. O forward fica com a camada HTTP.
//
// Não há estado mutável compartilhado em memória: tudo que é compartilhado vive
// no store externo e só é alterado por operações atômicas dele.
type Pipeline struct {
	Reputation ReputationGuard
	Config     ConfigProvider
	Limiter    AdaptiveLimiter
	Counter    WindowCounter
	Violations ViolationTracker

	Stages Stages
	Window time.Duration
	Clock  func() time.Time
	Logger *zap.Logger
}

func (p Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

func (p Pipeline) window() time.Duration {
	if p.Window <= 0 {
		return DefaultWindow
	}
	return p.Window
}

// Evaluate decide a requisição. Qualquer pânico interno vira OutcomeInternalError.
func (p Pipeline) Evaluate(ctx context.Context, req Request) (v domain.Verdict) {
	log := nopIfNil(p.Logger).With(zap.String("identity", string(req.Key)))
	v = domain.Verdict{Key: req.Key}

	defer func() {
		if rec := recover(); rec != nil {
			v = domain.Verdict{
				Key:     req.Key,
				Outcome: domain.OutcomeInternalError,
				Err:     fmt.Errorf("pipeline panic: %v", rec),
			}
			log.Error("pipeline panic", zap.Any("panic", rec))
		}
	}()

	// cancelamento do cliente não se propaga: cada estágio tem seu próprio timeout
	ctx = context.WithoutCancel(ctx)
	now := p.now()

	v.Standing = domain.StandingAllowed
	if p.Stages.BanCheck {
		v.Standing = p.Reputation.CheckBan(ctx, req.Key, now)
	}
	if v.Standing == domain.StandingBanned {
		log.Info("banned client blocked")
		v.Outcome = domain.OutcomeBanned
		return v
	}

	v.Config = p.Config.GetConfig(ctx)

	if p.Stages.Shield && v.Config.Mode == domain.ModeShield {
		if !Verify(string(req.Key), req.Solution, v.Config.Difficulty) {
			// registra atividade para o cliente aparecer no control plane
			p.Reputation.Touch(ctx, req.Key, now)
			v.Outcome = domain.OutcomeChallenged
			return v
		}
	}

	if v.Standing == domain.StandingTrusted {
		v.Outcome = domain.OutcomeAdmitted
		return v
	}

	v.Budget, v.Degraded = p.Limiter.normal(), false
	if p.Stages.Adaptive {
		v.Budget, v.Degraded = p.Limiter.GetRequestBudget(ctx, v.Config)
	}

	count, err := p.Counter.IncrementAndGet(ctx, req.Key, now, p.window())
	if err != nil {
		log.Error("counter store unavailable, failing closed", zap.Error(err))
		v.Outcome = domain.OutcomeInternalError
		v.Err = err
		return v
	}
	v.Count = count

	if count > uint64(v.Budget) {
		v.Outcome = domain.OutcomeRateLimited
		v.RetryAfter = p.window()
		if p.Stages.Violations {
			if _, err := p.Violations.RecordViolation(ctx, req.Key, now.UTC().Format("2006-01-02"), now); err != nil {
				log.Warn("violation tracking failed", zap.Error(err))
			}
		}
		return v
	}

	if count == 1 {
		p.Reputation.Touch(ctx, req.Key, now)
	}
	v.Outcome = domain.OutcomeAdmitted
	return v
}

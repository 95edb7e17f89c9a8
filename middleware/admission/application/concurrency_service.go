package application

import (
	"context"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// ConcurrencyService limita quantas requisições o gateway processa ao mesmo tempo.
// Fica fora da decisão de admissão: é proteção do próprio processo.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx encerrar.
//   - AcquireTimeout > 0: espera no máximo o timeout.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		nopIfNil(s.Logger).Warn("no concurrency slot available",
			zap.Duration("acquire_timeout", s.AcquireTimeout))
		return nil, false
	}
	return release, true
}

package application

import (
	"context"
	"errors"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// ConfigProvider lê o GlobalConfig a cada requisição, sem cache e sem retry.
// Qualquer falha cai nos defaults compilados; config velha ou default é melhor
// que latência extra no caminho quente.
type ConfigProvider struct {
	Store   domain.ConfigStore
	Timeout time.Duration
	Logger  *zap.Logger
}

func (p ConfigProvider) GetConfig(ctx context.Context) domain.GlobalConfig {
	if p.Store == nil {
		return domain.DefaultGlobalConfig()
	}

	ctx, cancel := boundedContext(ctx, p.Timeout, DefaultStoreTimeout)
	defer cancel()

	cfg, err := p.Store.GetConfig(ctx)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			nopIfNil(p.Logger).Warn("config unavailable, using defaults", zap.Error(err))
		}
		return domain.DefaultGlobalConfig()
	}
	return cfg
}

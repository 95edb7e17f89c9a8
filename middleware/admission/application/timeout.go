package application

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Timeouts padrão de cada ponto de suspensão do pipeline.
const (
	DefaultStoreTimeout  = 1 * time.Second
	DefaultHealthTimeout = 500 * time.Millisecond
)

func boundedContext(ctx context.Context, d, def time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = def
	}
	return context.WithTimeout(ctx, d)
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

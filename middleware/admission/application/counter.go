package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"flux-gateway/middleware/admission/domain"
)

const (
	DefaultWindow = 10 * time.Second
	// DefaultCleanupHorizon é independente da janela: só serve para o store
	// coletar a chave logo depois que a janela fecha.
	DefaultCleanupHorizon = 60 * time.Second
)

// WindowCounter é o contador de janela fixa por cliente.
type WindowCounter struct {
	Store   domain.CounterStore
	Horizon time.Duration
	Timeout time.Duration
}

// WindowStart = floor(now/window)*window, em segundos unix.
func WindowStart(now time.Time, window time.Duration) int64 {
	w := int64(window / time.Second)
	if w <= 0 {
		w = 1
	}
	sec := now.Unix()
	start := sec / w * w
	if sec < 0 && sec%w != 0 {
		start -= w
	}
	return start
}

// WindowKey monta a chave identity-window_start.
func WindowKey(key domain.Key, start int64) string {
	return string(key) + "-" + strconv.FormatInt(start, 10)
}

// IncrementAndGet incrementa o contador da janela corrente e retorna o valor após o
// incremento. Erro aqui deve ser tratado como fail-closed pelo chamador.
func (c WindowCounter) IncrementAndGet(ctx context.Context, key domain.Key, now time.Time, window time.Duration) (uint64, error) {
	if c.Store == nil {
		return 0, fmt.Errorf("window counter: %w: no counter store", domain.ErrStoreUnavailable)
	}
	horizon := c.Horizon
	if horizon <= 0 {
		horizon = DefaultCleanupHorizon
	}

	ctx, cancel := boundedContext(ctx, c.Timeout, DefaultStoreTimeout)
	defer cancel()

	n, err := c.Store.Increment(ctx, WindowKey(key, WindowStart(now, window)), horizon)
	if err != nil {
		return 0, fmt.Errorf("window counter: %w", err)
	}
	return n, nil
}

package domain

// Contratos do contador por janela e da sonda de saúde.

import (
	"context"
	"time"
)

// CounterStore incrementa contadores por chave.
//
// Increment deve ser uma única operação atômica no store (increment-with-default
// + renovação da expiração). Não é aceitável ler e depois escrever: a exatidão do
// limite depende da contagem exata sob concorrência.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (uint64, error)
}

// HealthProber consulta a carga reportada pelo backend protegido, em percentual.
type HealthProber interface {
	Load(ctx context.Context) (float64, error)
}

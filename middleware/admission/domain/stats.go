package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do gateway.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key      Key
	Outcome  Outcome
	Degraded bool

	Method string
	Path   string

	At time.Time
}

// Allowed indica se a requisição chegou ao backend.
func (ev StatsEvent) Allowed() bool {
	switch ev.Outcome {
	case OutcomeAdmitted, OutcomeForwarded, OutcomeBadGateway, OutcomeGatewayTimeout:
		return true
	}
	return false
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsSnapshot é o agregado lido pelo control plane.
type StatsSnapshot struct {
	Allowed   int64            `json:"allowed"`
	Denied    int64            `json:"denied"`
	Degraded  int64            `json:"degraded"`
	ByOutcome map[string]int64 `json:"by_outcome"`
}

// StatsReader é implementado pelos stores que conseguem devolver o agregado.
type StatsReader interface {
	Snapshot(ctx context.Context) (StatsSnapshot, error)
}

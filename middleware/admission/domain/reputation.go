package domain

import (
	"context"
	"time"
)

// Key identifica um cliente (normalmente o IP de origem).
type Key string

// ReputationRecord é o estado de reputação de um cliente.
//
// O registro é criado sob demanda na primeira escrita e só é alterado por operações
// atômicas do store. Registros antigos são inofensivos e nunca são apagados
// explicitamente.
type ReputationRecord struct {
	Key Key

	IsBanned  bool
	BanExpiry time.Time

	ViolationCount    uint64
	LastViolationDate string // YYYY-MM-DD

	IsSeamless     bool
	SeamlessExpiry time.Time

	LastSeen time.Time
}

// BanActive: banido enquanto now < BanExpiry. O ban expira sozinho.
func (r ReputationRecord) BanActive(now time.Time) bool {
	return r.IsBanned && now.Before(r.BanExpiry)
}

func (r ReputationRecord) SeamlessActive(now time.Time) bool {
	return r.IsSeamless && now.Before(r.SeamlessExpiry)
}

// Standing é o resultado da checagem de reputação.
type Standing int

const (
	StandingAllowed Standing = iota
	StandingBanned
	// StandingTrusted: cliente em modo seamless, isento de ban e de throttling.
	StandingTrusted
)

func (s Standing) String() string {
	switch s {
	case StandingBanned:
		return "banned"
	case StandingTrusted:
		return "trusted"
	default:
		return "allowed"
	}
}

// ReputationStore é a estratégia de persistência dos registros de reputação.
//
// Todas as escritas devem ser atômicas no store (nada de get+put):
// AddViolation incrementa com default 0 numa única operação.
type ReputationStore interface {
	// Get retorna ErrRecordNotFound quando o cliente nunca foi visto.
	Get(ctx context.Context, key Key) (ReputationRecord, error)
	Touch(ctx context.Context, key Key, at time.Time) error
	// AddViolation incrementa violation_count e carimba last_violation_date/last_seen.
	// Retorna o valor após o incremento.
	AddViolation(ctx context.Context, key Key, day string, at time.Time) (uint64, error)
	// Ban marca o cliente como banido até `until` e zera violation_count.
	Ban(ctx context.Context, key Key, until time.Time) error
	Unban(ctx context.Context, key Key) error
	SetSeamless(ctx context.Context, key Key, until time.Time) error
	ClearSeamless(ctx context.Context, key Key) error
	List(ctx context.Context) ([]ReputationRecord, error)
}

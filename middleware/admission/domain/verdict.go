package domain

import "time"

// Outcome é o estado terminal de uma requisição.
type Outcome string

const (
	// OutcomeAdmitted: o pipeline liberou; o forward ainda vai acontecer.
	OutcomeAdmitted      Outcome = "admitted"
	OutcomeBanned        Outcome = "banned"
	OutcomeChallenged    Outcome = "challenged"
	OutcomeRateLimited   Outcome = "rate_limited"
	OutcomeInternalError Outcome = "internal_error"

	// Resultados do forward.
	OutcomeForwarded      Outcome = "forwarded"
	OutcomeBadGateway     Outcome = "bad_gateway"
	OutcomeGatewayTimeout Outcome = "gateway_timeout"
)

// Verdict é a decisão do pipeline para uma requisição.
type Verdict struct {
	Outcome  Outcome
	Key      Key
	Standing Standing
	Config   GlobalConfig

	// Count e Budget só fazem sentido depois do estágio de contagem.
	Count    uint64
	Budget   int
	Degraded bool

	// RetryAfter é o valor a ser retornado em Retry-After no 429.
	RetryAfter time.Duration

	// Err guarda a causa interna. Vai para o log, nunca para o cliente.
	Err error
}

func (v Verdict) Admitted() bool { return v.Outcome == OutcomeAdmitted }

package domain

import "errors"

var (
	// ErrStoreUnavailable indica falha de comunicação com o store externo.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRecordNotFound indica que a chave não existe no store.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMalformedConfig indica que o registro de configuração existe mas não pode ser usado.
	ErrMalformedConfig = errors.New("malformed config")

	// ErrProbeFailed indica que a sonda de saúde não obteve uma carga válida.
	ErrProbeFailed = errors.New("health probe failed")
)

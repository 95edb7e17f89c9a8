package domain

import (
	"context"
	"fmt"
)

type Mode string

const (
	ModeNormal Mode = "normal"
	// ModeShield exige prova de trabalho antes de qualquer contagem.
	ModeShield Mode = "shield"
)

// Valores usados quando o registro global não pode ser lido.
const (
	DefaultMode         = ModeNormal
	DefaultDifficulty   = 4
	DefaultCPUThreshold = 80.0

	// MaxDifficulty é o tamanho do digest SHA-256 em hexadecimal.
	MaxDifficulty = 64
)

// GlobalConfig é o registro único de operação, alterado apenas pelo control plane.
// Para o pipeline ele é somente leitura e é passado por valor a cada requisição.
type GlobalConfig struct {
	Mode         Mode    `json:"mode"`
	Difficulty   int     `json:"difficulty"`
	CPUThreshold float64 `json:"cpu_threshold"`
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Mode:         DefaultMode,
		Difficulty:   DefaultDifficulty,
		CPUThreshold: DefaultCPUThreshold,
	}
}

func (c GlobalConfig) Validate() error {
	switch c.Mode {
	case ModeNormal, ModeShield:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrMalformedConfig, c.Mode)
	}
	if c.Difficulty < 0 || c.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: difficulty %d out of range 0..%d", ErrMalformedConfig, c.Difficulty, MaxDifficulty)
	}
	if c.CPUThreshold < 0 {
		return fmt.Errorf("%w: negative cpu_threshold", ErrMalformedConfig)
	}
	return nil
}

// ConfigStore lê e grava o GlobalConfig.
//
// GetConfig retorna ErrRecordNotFound se a chave não existe e ErrMalformedConfig
// se algum campo não pode ser interpretado. Campos ausentes recebem o default.
type ConfigStore interface {
	GetConfig(ctx context.Context) (GlobalConfig, error)
	SaveConfig(ctx context.Context, cfg GlobalConfig) error
}

package controlplane

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"flux-gateway/middleware/admission/domain"

	"gopkg.in/yaml.v3"
)

// Ações aceitas em POST /records e no arquivo do `apply`.
const (
	ActionBan        = "ban"
	ActionUnban      = "unban"
	ActionSeamless   = "seamless"
	ActionUnseamless = "unseamless"
)

// ErrInvalidAction indica pedido malformado (ip/ação ausente, ação desconhecida).
var ErrInvalidAction = errors.New("invalid action")

type Action struct {
	IP              string `json:"ip" yaml:"ip"`
	Action          string `json:"action" yaml:"action"`
	DurationSeconds int64  `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
}

type ActionResult struct {
	IP      string `json:"ip"`
	Action  string `json:"action"`
	Message string `json:"message"`
	Until   int64  `json:"until,omitempty"`
}

// ActionFile é o formato do arquivo YAML do subcomando apply.
type ActionFile struct {
	Actions []Action `yaml:"actions"`
}

// LoadActions lê e valida um arquivo de ações.
func LoadActions(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read actions file: %w", err)
	}
	var f ActionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse actions file: %w", err)
	}
	for i, a := range f.Actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return f.Actions, nil
}

func (a Action) Validate() error {
	if strings.TrimSpace(a.IP) == "" || strings.TrimSpace(a.Action) == "" {
		return fmt.Errorf("%w: missing ip or action", ErrInvalidAction)
	}
	switch strings.ToLower(strings.TrimSpace(a.Action)) {
	case ActionBan, ActionUnban, ActionSeamless, ActionUnseamless:
	default:
		return fmt.Errorf("%w: use ban, unban, seamless or unseamless (got %q)", ErrInvalidAction, a.Action)
	}
	if a.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration_seconds must be >= 0", ErrInvalidAction)
	}
	return nil
}

// Applier executa ações de reputação contra o store.
type Applier struct {
	Store domain.ReputationStore
	// DefaultDuration vale para ban/seamless sem duration_seconds.
	DefaultDuration time.Duration
	Clock           func() time.Time
}

func (a Applier) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func (a Applier) Apply(ctx context.Context, act Action) (ActionResult, error) {
	if err := act.Validate(); err != nil {
		return ActionResult{}, err
	}
	ip := strings.TrimSpace(act.IP)
	name := strings.ToLower(strings.TrimSpace(act.Action))
	key := domain.Key(ip)

	d := a.DefaultDuration
	if act.DurationSeconds > 0 {
		d = time.Duration(act.DurationSeconds) * time.Second
	}
	if d <= 0 {
		d = 24 * time.Hour
	}
	until := a.now().Add(d)

	res := ActionResult{IP: ip, Action: name}
	var err error
	switch name {
	case ActionBan:
		err = a.Store.Ban(ctx, key, until)
		res.Until = until.Unix()
		res.Message = fmt.Sprintf("Success: %s has been manually banned for %s.", ip, d)
	case ActionUnban:
		err = a.Store.Unban(ctx, key)
		res.Message = fmt.Sprintf("Success: %s is now clean.", ip)
	case ActionSeamless:
		err = a.Store.SetSeamless(ctx, key, until)
		res.Until = until.Unix()
		res.Message = fmt.Sprintf("Success: %s is seamless for %s.", ip, d)
	case ActionUnseamless:
		err = a.Store.ClearSeamless(ctx, key)
		res.Message = fmt.Sprintf("Success: %s is no longer seamless.", ip)
	}
	if err != nil {
		return ActionResult{}, fmt.Errorf("%s %s: %w", name, ip, err)
	}
	return res, nil
}

// ApplyAll para na primeira falha e devolve o que já foi aplicado.
func (a Applier) ApplyAll(ctx context.Context, acts []Action) ([]ActionResult, error) {
	out := make([]ActionResult, 0, len(acts))
	for _, act := range acts {
		res, err := a.Apply(ctx, act)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

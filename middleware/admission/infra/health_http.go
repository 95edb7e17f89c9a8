package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flux-gateway/middleware/admission/domain"
)

// HTTPHealthProbe lê a carga do backend em GET <base>/health.
//
// Resposta esperada: {"status":"alive","cpu":<percentual>}.
type HTTPHealthProbe struct {
	client *http.Client
	base   string
	path   string
}

type HealthOption func(*HTTPHealthProbe)

// WithHealthClient troca o http.Client (útil em testes).
func WithHealthClient(c *http.Client) HealthOption {
	return func(p *HTTPHealthProbe) { p.client = c }
}

func WithHealthPath(path string) HealthOption {
	return func(p *HTTPHealthProbe) { p.path = "/" + strings.TrimLeft(path, "/") }
}

func NewHTTPHealthProbe(upstream string, opts ...HealthOption) *HTTPHealthProbe {
	p := &HTTPHealthProbe{
		client: &http.Client{Timeout: 2 * time.Second},
		base:   strings.TrimRight(upstream, "/"),
		path:   "/health",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type healthBody struct {
	Status string   `json:"status"`
	CPU    *float64 `json:"cpu"`
}

// URL devolve o endereço consultado.
func (p *HTTPHealthProbe) URL() string { return p.base + p.path }

func (p *HTTPHealthProbe) Load(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrProbeFailed, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrProbeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", domain.ErrProbeFailed, resp.StatusCode)
	}

	var body healthBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode: %w", domain.ErrProbeFailed, err)
	}
	if body.CPU == nil {
		return 0, fmt.Errorf("%w: missing cpu", domain.ErrProbeFailed)
	}
	return *body.CPU, nil
}

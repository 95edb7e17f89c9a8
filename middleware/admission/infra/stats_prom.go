package infra

import (
	"context"
	"net/http"

	"flux-gateway/middleware/admission/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromStatsStore expõe as decisões como métricas Prometheus.
//
// Só rotula por outcome: Key e Path ficam de fora para não explodir cardinalidade.
type PromStatsStore struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	degraded  prometheus.Counter
}

func NewPromStatsStore() *PromStatsStore {
	s := &PromStatsStore{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flux",
			Name:      "decisions_total",
			Help:      "Admission decisions by outcome.",
		}, []string{"outcome"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flux",
			Name:      "degraded_decisions_total",
			Help:      "Decisions taken with the degraded request budget.",
		}),
	}
	s.registry.MustRegister(s.decisions, s.degraded)
	return s
}

func (s *PromStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.decisions.WithLabelValues(string(ev.Outcome)).Inc()
	if ev.Degraded {
		s.degraded.Inc()
	}
	return nil
}

// Handler serve /metrics a partir do registry próprio.
func (s *PromStatsStore) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

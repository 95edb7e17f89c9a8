package infra

import (
	"context"
	"sync"

	"flux-gateway/middleware/admission/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed() {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	degraded  int64
	byOutcome map[domain.Outcome]int64
	byRoute   map[string]Counters
	byKey     map[string]Counters

	trackKeys     bool
	routePrefixes []string
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func WithRoutePrefixes(prefixes ...string) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.routePrefixes = cleanRoutePrefixes(prefixes) }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byOutcome: make(map[domain.Outcome]int64),
		byRoute:   make(map[string]Counters),
		byKey:     make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := routeLabel(ev.Method, ev.Path, s.routePrefixes)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	s.byOutcome[ev.Outcome]++
	if ev.Degraded {
		s.degraded++
	}

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Outcome(o domain.Outcome) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byOutcome[o]
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) Snapshot(context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := domain.StatsSnapshot{
		Allowed:   s.total.Allowed,
		Denied:    s.total.Denied,
		Degraded:  s.degraded,
		ByOutcome: make(map[string]int64, len(s.byOutcome)),
	}
	for o, n := range s.byOutcome {
		snap.ByOutcome[string(o)] = n
	}
	return snap, nil
}

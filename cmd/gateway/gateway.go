package main

import (
	"net/http"
	"net/url"
	"time"

	"flux-gateway/internal/config"
	"flux-gateway/middleware/admission"
	"flux-gateway/middleware/admission/application"
	"flux-gateway/middleware/admission/domain"
	"flux-gateway/middleware/admission/infra"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rotas próprias do gateway ficam sob um prefixo reservado para não colidir com o backend.
const (
	metricsPath = "/_flux/metrics"
	healthzPath = "/_flux/healthz"
)

// newGateway monta o handler completo: rotas internas + admissão + forward.
func newGateway(cfg config.Gateway, rdb *redis.Client, log *zap.Logger) (http.Handler, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, err
	}

	reputation := infra.NewRedisReputationStore(rdb,
		infra.WithReputationPrefix(cfg.Prefix),
		infra.WithRecordTTL(cfg.RecordTTL),
	)

	pipeline := application.Pipeline{
		Reputation: application.ReputationGuard{
			Store:   reputation,
			Timeout: cfg.StoreTimeout,
			Logger:  log,
		},
		Config: application.ConfigProvider{
			Store:   infra.NewRedisConfigStore(rdb, infra.WithConfigPrefix(cfg.Prefix)),
			Timeout: cfg.StoreTimeout,
			Logger:  log,
		},
		Limiter: application.AdaptiveLimiter{
			Probe:          infra.NewHTTPHealthProbe(cfg.UpstreamURL, infra.WithHealthPath(cfg.HealthPath)),
			Timeout:        cfg.HealthTimeout,
			NormalBudget:   cfg.NormalBudget,
			DegradedBudget: cfg.DegradedBudget,
			Logger:         log,
		},
		Counter: application.WindowCounter{
			Store:   infra.NewRedisCounterStore(rdb, infra.WithCounterPrefix(cfg.Prefix)),
			Horizon: cfg.CleanupHorizon,
			Timeout: cfg.StoreTimeout,
		},
		Violations: application.ViolationTracker{
			Store:         reputation,
			MaxViolations: uint64(cfg.MaxViolations),
			BanDuration:   cfg.BanDuration,
			Timeout:       cfg.StoreTimeout,
			Logger:        log,
		},
		Stages: application.Stages{
			BanCheck:   cfg.BanCheckEnabled,
			Shield:     cfg.ShieldEnabled,
			Adaptive:   cfg.AdaptiveEnabled,
			Violations: cfg.ViolationsEnabled,
		},
		Window: cfg.Window,
		Logger: log,
	}

	var stats infra.MultiStats
	r := chi.NewRouter()

	if cfg.StatsEnabled {
		stats = append(stats, infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsBucket(cfg.StatsBucket),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys),
			infra.WithStatsTrackRoutes(cfg.StatsTrackRoutes),
			infra.WithStatsRoutePrefixes(cfg.StatsRoutePrefixes...),
		))
	}
	if cfg.MetricsEnabled {
		prom := infra.NewPromStatsStore()
		stats = append(stats, prom)
		r.Handle(metricsPath, prom.Handler())
	}
	r.Get(healthzPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var statsStore domain.StatsStore
	if len(stats) > 0 {
		statsStore = stats
	}

	h := http.Handler(admission.NewForwarder(upstream,
		admission.WithForwardTimeout(cfg.ForwardTimeout),
		admission.WithForwarderLogger(log),
	))
	h = admission.Middleware(admission.Options{
		Pipeline:            pipeline,
		Stats:               statsStore,
		KeyHeader:           cfg.KeyHeader,
		TrustXForwardedFor:  cfg.TrustXFF,
		SolutionHeader:      cfg.SolutionHeader,
		AddRateLimitHeaders: cfg.AddHeaders,
		StatsTimeout:        time.Second,
		Logger:              log,
	})(h)
	h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		Logger:         log,
	})(h)

	r.Handle("/*", h)
	return r, nil
}

package controlplane

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"flux-gateway/middleware/admission"
	"flux-gateway/middleware/admission/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const AdminKeyHeader = "X-Admin-Key"

// RateLimiter é o token bucket por cliente (infra.TokenBucketStore).
type RateLimiter interface {
	Allow(key string) bool
}

type Server struct {
	Reputation domain.ReputationStore
	Config     domain.ConfigStore
	// Stats é opcional; sem ele GET /stats responde 404.
	Stats domain.StatsReader

	AdminKey    string
	AllowOrigin string
	Limiter     RateLimiter

	BanDuration  time.Duration
	StoreTimeout time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
}

func (s *Server) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) applier() Applier {
	return Applier{Store: s.Reputation, DefaultDuration: s.BanDuration, Clock: s.Clock}
}

func (s *Server) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Routes monta o router. OPTIONS responde antes da autenticação (preflight não leva headers).
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)
	r.Use(s.rateLimit)
	r.Use(s.requireAdminKey)

	r.Get("/records", s.handleListRecords)
	r.Get("/records/{identity}", s.handleGetRecord)
	r.Post("/records", s.handleApply)
	r.Get("/config", s.handleGetConfig)
	r.Put("/config", s.handlePutConfig)
	r.Get("/stats", s.handleStats)
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "OPTIONS,GET,POST,PUT")
		h.Set("Access-Control-Allow-Headers", "Content-Type,"+AdminKeyHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	keyFn := admission.DefaultKeyFunc("", false)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter != nil && !s.Limiter.Allow(keyFn(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusServiceUnavailable, "admin key not configured")
			return
		}
		key := r.Header.Get(AdminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.AdminKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = 2 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

type recordView struct {
	IP                string `json:"ip"`
	IsBanned          bool   `json:"is_banned"`
	BanExpiry         int64  `json:"ban_expiry,omitempty"`
	BanActive         bool   `json:"ban_active"`
	ViolationCount    uint64 `json:"violation_count"`
	LastViolationDate string `json:"last_violation_date,omitempty"`
	IsSeamless        bool   `json:"is_seamless"`
	SeamlessExpiry    int64  `json:"seamless_expiry,omitempty"`
	LastSeen          int64  `json:"last_seen,omitempty"`
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func viewOf(rec domain.ReputationRecord, now time.Time) recordView {
	return recordView{
		IP:                string(rec.Key),
		IsBanned:          rec.IsBanned,
		BanExpiry:         unixOrZero(rec.BanExpiry),
		BanActive:         rec.BanActive(now),
		ViolationCount:    rec.ViolationCount,
		LastViolationDate: rec.LastViolationDate,
		IsSeamless:        rec.IsSeamless,
		SeamlessExpiry:    unixOrZero(rec.SeamlessExpiry),
		LastSeen:          unixOrZero(rec.LastSeen),
	}
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	recs, err := s.Reputation.List(ctx)
	if err != nil {
		s.storeError(w, "list records", err)
		return
	}
	now := s.now()
	out := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, viewOf(rec, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	id := chi.URLParam(r, "identity")
	rec, err := s.Reputation.Get(ctx, domain.Key(id))
	if errors.Is(err, domain.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		s.storeError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec, s.now()))
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var act Action
	if err := decodeJSON(r, &act); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := act.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	res, err := s.applier().Apply(ctx, act)
	if err != nil {
		s.storeError(w, "apply action", err)
		return
	}
	s.log().Info("reputation action applied",
		zap.String("identity", res.IP),
		zap.String("action", res.Action))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	cfg, err := s.Config.GetConfig(ctx)
	if errors.Is(err, domain.ErrRecordNotFound) {
		cfg, err = domain.DefaultGlobalConfig(), nil
	}
	if errors.Is(err, domain.ErrMalformedConfig) {
		// o gateway está usando os padrões; mostramos o que ele aplica
		s.log().Warn("stored config is malformed", zap.Error(err))
		cfg, err = domain.DefaultGlobalConfig(), nil
	}
	if err != nil {
		s.storeError(w, "get config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	cfg := domain.DefaultGlobalConfig()
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	cfg.Mode = domain.Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.Config.SaveConfig(ctx, cfg); err != nil {
		s.storeError(w, "save config", err)
		return
	}
	s.log().Info("global config updated",
		zap.String("mode", string(cfg.Mode)),
		zap.Int("difficulty", cfg.Difficulty),
		zap.Float64("cpu_threshold", cfg.CPUThreshold))
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil {
		writeError(w, http.StatusNotFound, "stats not configured")
		return
	}
	ctx, cancel := s.storeContext(r)
	defer cancel()

	snap, err := s.Stats.Snapshot(ctx)
	if err != nil {
		s.storeError(w, "stats snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	s.log().Error(op+" failed", zap.Error(err))
	if errors.Is(err, domain.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package admission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"flux-gateway/middleware/admission/application"
	"flux-gateway/middleware/admission/domain"
	"flux-gateway/middleware/admission/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	mr      *miniredis.Miniredis
	rep     *infra.RedisReputationStore
	cfg     *infra.RedisConfigStore
	stats   *infra.MemoryStatsStore
	handler http.Handler
	now     time.Time
}

func newGatewayFixture(t *testing.T, upstream string, opts ...ForwarderOption) *gatewayFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &gatewayFixture{
		mr:    mr,
		rep:   infra.NewRedisReputationStore(rdb),
		cfg:   infra.NewRedisConfigStore(rdb),
		stats: infra.NewMemoryStatsStore(),
		now:   time.Unix(1_700_000_000, 0),
	}

	pipeline := application.Pipeline{
		Reputation: application.ReputationGuard{Store: f.rep},
		Config:     application.ConfigProvider{Store: f.cfg},
		Counter:    application.WindowCounter{Store: infra.NewRedisCounterStore(rdb)},
		Violations: application.ViolationTracker{Store: f.rep},
		Stages:     application.Stages{BanCheck: true, Shield: true, Violations: true},
		Window:     10 * time.Second,
		Clock:      func() time.Time { return f.now },
	}

	u, err := url.Parse(upstream)
	require.NoError(t, err)

	f.handler = Middleware(Options{
		Pipeline:            pipeline,
		Stats:               f.stats,
		AddRateLimitHeaders: true,
	})(NewForwarder(u, opts...))
	return f
}

func (f *gatewayFixture) do(ip string, header ...string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://gateway/hello", nil)
	r.RemoteAddr = ip + ":4321"
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newBackend(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func okBackend(t *testing.T) *httptest.Server {
	return newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"Welcome"}`)
	})
}

func TestMiddleware_SixthRequestInWindowIsRateLimited(t *testing.T) {
	f := newGatewayFixture(t, okBackend(t).URL)

	for i := 1; i <= 5; i++ {
		w := f.do("10.0.0.1")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, `{"message":"Welcome"}`, w.Body.String())
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	}

	w := f.do("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "6", w.Header().Get("X-RateLimit-Count"))
	body := decodeBody(t, w)
	assert.Equal(t, "Too Many Requests", body["error"])
	assert.Equal(t, 5.0, body["limit"])

	assert.Equal(t, "1", f.mr.HGet("flux:rep:10.0.0.1", "violation_count"))
	assert.Equal(t, int64(5), f.stats.Outcome(domain.OutcomeForwarded))
	assert.Equal(t, int64(1), f.stats.Outcome(domain.OutcomeRateLimited))

	f.now = f.now.Add(10 * time.Second)
	assert.Equal(t, http.StatusOK, f.do("10.0.0.1").Code)
}

func TestMiddleware_BannedClientGets403(t *testing.T) {
	f := newGatewayFixture(t, okBackend(t).URL)
	require.NoError(t, f.rep.Ban(context.Background(), "10.0.0.2", f.now.Add(time.Hour)))

	w := f.do("10.0.0.2")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{"error": "Access Denied", "message": "You are banned."}, decodeBody(t, w))
	assert.Equal(t, int64(1), f.stats.Outcome(domain.OutcomeBanned))
}

func TestMiddleware_ShieldChallengeAndSolution(t *testing.T) {
	f := newGatewayFixture(t, okBackend(t).URL)
	require.NoError(t, f.cfg.SaveConfig(context.Background(), domain.GlobalConfig{
		Mode: domain.ModeShield, Difficulty: 2, CPUThreshold: 80,
	}))

	w := f.do("10.0.0.3")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Shield Active. Solve Puzzle.", body["error"])
	assert.Equal(t, "10.0.0.3", body["challenge"])
	assert.Equal(t, 2.0, body["difficulty"])

	solution, ok := application.Solve("10.0.0.3", 2, 0)
	require.True(t, ok)
	w = f.do("10.0.0.3", DefaultSolutionHeader, solution)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_CounterStoreFailureIs500WithGenericBody(t *testing.T) {
	f := newGatewayFixture(t, okBackend(t).URL)
	f.mr.SetError("LOADING dataset in memory")

	w := f.do("10.0.0.4")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"error": "Internal Server Error"}, decodeBody(t, w))
	assert.NotContains(t, w.Body.String(), "LOADING")
	assert.Equal(t, int64(1), f.stats.Outcome(domain.OutcomeInternalError))
}

func TestMiddleware_BackendStatusPassesThrough(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	})
	f := newGatewayFixture(t, backend.URL)

	w := f.do("10.0.0.5")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "short and stout", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Backend"))
	assert.Equal(t, int64(1), f.stats.Outcome(domain.OutcomeForwarded))
}

func TestMiddleware_UnreachableBackendIs502(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	addr := backend.URL
	backend.Close()
	f := newGatewayFixture(t, addr)

	w := f.do("10.0.0.6")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, int64(1), f.stats.Outcome(domain.OutcomeBadGateway))
}

func TestMiddleware_SlowBackendIs504(t *testing.T) {
	release := make(chan struct{})
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	f := newGatewayFixture(t, backend.URL, WithForwardTimeout(50*time.Millisecond))

	start := time.Now()
	w := f.do("10.0.0.7")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int64(1), f.stats.Outcome(domain.OutcomeGatewayTimeout))
}

func TestMiddleware_TrustedClientIsNotThrottled(t *testing.T) {
	f := newGatewayFixture(t, okBackend(t).URL)
	require.NoError(t, f.rep.SetSeamless(context.Background(), "10.0.0.8", f.now.Add(time.Hour)))

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, f.do("10.0.0.8").Code)
	}
}

type admitAllCounter struct{}

func (admitAllCounter) Increment(context.Context, string, time.Duration) (uint64, error) {
	return 1, nil
}

func admitAll() application.Pipeline {
	return application.Pipeline{Counter: application.WindowCounter{Store: admitAllCounter{}}}
}

func TestMiddleware_PanicInNextIs500(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	h := Middleware(Options{Pipeline: admitAll(), Stats: stats})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gateway/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Equal(t, int64(1), stats.Outcome(domain.OutcomeInternalError))
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	h := Middleware(Options{Pipeline: admitAll()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "http://gateway/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestMiddleware_RequestIDReachesBackendOnce(t *testing.T) {
	seen := make(chan string, 2)
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(RequestIDHeader)
		w.Header().Set(RequestIDHeader, "backend-id")
		w.WriteHeader(http.StatusOK)
	})
	f := newGatewayFixture(t, backend.URL)

	w := f.do("10.0.0.9")
	require.Equal(t, http.StatusOK, w.Code)
	ids := w.Header().Values(RequestIDHeader)
	require.Len(t, ids, 1)
	assert.NotEqual(t, "backend-id", ids[0])
	assert.Equal(t, ids[0], <-seen)

	w = f.do("10.0.0.9", RequestIDHeader, "abc-123")
	assert.Equal(t, []string{"abc-123"}, w.Header().Values(RequestIDHeader))
	assert.Equal(t, "abc-123", <-seen)
}

func TestMiddleware_NoCounterStoreFailsClosed(t *testing.T) {
	called := false
	h := Middleware(Options{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gateway/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, called)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "10", formatSeconds(10*time.Second))
	assert.Equal(t, "1", formatSeconds(200*time.Millisecond))
	assert.Equal(t, "0", formatSeconds(0))
}

package admission

import (
	"context"
	"net/http"
	"time"

	"flux-gateway/middleware/admission/application"
	"flux-gateway/middleware/admission/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSolutionHeader = "X-Puzzle-Solution"
	RequestIDHeader       = "X-Request-Id"
)

type Options struct {
	Pipeline application.Pipeline
	Stats    domain.StatsStore

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	// SolutionHeader é o header com a solução do proof-of-work (padrão X-Puzzle-Solution).
	SolutionHeader string

	AddRateLimitHeaders bool
	// StatsTimeout limita a gravação de estatísticas (padrão 1s).
	StatsTimeout time.Duration

	Logger *zap.Logger
}

// Middleware avalia cada requisição no Pipeline e só chama next quando admitida.
// next normalmente é o Forwarder.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.SolutionHeader == "" {
		opts.SolutionHeader = DefaultSolutionHeader
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			key := domain.Key(opts.KeyFn(r))
			log := logger.With(zap.String("request_id", reqID), zap.String("identity", string(key)))
			sw := &statusWriter{ResponseWriter: w}

			ev := domain.StatsEvent{
				Key:     key,
				Outcome: domain.OutcomeInternalError,
				Method:  r.Method,
				Path:    r.URL.Path,
				At:      time.Now(),
			}

			defer func() {
				rec := recover()
				if rec == http.ErrAbortHandler {
					// conexão abortada no meio do corpo: o servidor trata
					record(r.Context(), opts, ev, log)
					panic(rec)
				}
				if rec != nil {
					log.Error("request panic", zap.Any("panic", rec))
					ev.Outcome = domain.OutcomeInternalError
					if sw.status == 0 {
						writeOutcome(sw, domain.OutcomeInternalError)
					}
				}
				record(r.Context(), opts, ev, log)
			}()

			v := opts.Pipeline.Evaluate(r.Context(), application.Request{
				Key:      key,
				Solution: r.Header.Get(opts.SolutionHeader),
			})
			ev.Degraded = v.Degraded

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(key))
				if v.Budget > 0 {
					w.Header().Set("X-RateLimit-Limit", formatInt(v.Budget))
					w.Header().Set("X-RateLimit-Count", formatUint(v.Count))
				}
			}

			if !v.Admitted() {
				ev.Outcome = v.Outcome
				if v.Err != nil {
					log.Error("request rejected", zap.String("outcome", string(v.Outcome)), zap.Error(v.Err))
				} else {
					log.Info("request rejected",
						zap.String("outcome", string(v.Outcome)),
						zap.Uint64("count", v.Count),
						zap.Int("budget", v.Budget),
						zap.Bool("degraded", v.Degraded))
				}
				writeVerdict(sw, v)
				return
			}

			ctx, holder := withOutcomeHolder(withRequestID(r.Context(), reqID))
			next.ServeHTTP(sw, r.WithContext(ctx))
			ev.Outcome = holder.get(domain.OutcomeForwarded)
			log.Debug("request forwarded",
				zap.String("outcome", string(ev.Outcome)),
				zap.Int("status", sw.Status()))
		})
	}
}

func record(ctx context.Context, opts Options, ev domain.StatsEvent, log *zap.Logger) {
	if opts.Stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.StatsTimeout)
	defer cancel()
	if err := opts.Stats.Record(ctx, ev); err != nil {
		log.Debug("stats record failed", zap.Error(err))
	}
}

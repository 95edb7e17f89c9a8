package admission

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"flux-gateway/middleware/admission/domain"

	"go.uber.org/zap"
)

// DefaultForwardTimeout é o tempo máximo de uma ida ao backend.
const DefaultForwardTimeout = 3 * time.Second

// Forwarder faz uma única tentativa de proxy para o backend, com timeout próprio.
//
// Qualquer status do backend passa sem alteração. Falha de conexão vira 502 e
// estouro de tempo vira 504. Não há retry.
type Forwarder struct {
	proxy   *httputil.ReverseProxy
	timeout time.Duration
	logger  *zap.Logger
}

type ForwarderOption func(*Forwarder)

func WithForwardTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithTransport(rt http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) { f.proxy.Transport = rt }
}

func WithForwarderLogger(l *zap.Logger) ForwarderOption {
	return func(f *Forwarder) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewForwarder(upstream *url.URL, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{timeout: DefaultForwardTimeout, logger: zap.NewNop()}
	f.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			if id := RequestIDFrom(pr.In.Context()); id != "" {
				pr.Out.Header.Set(RequestIDHeader, id)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			// o id do gateway já está na resposta; o do backend não pode duplicá-lo
			if RequestIDFrom(resp.Request.Context()) != "" {
				resp.Header.Del(RequestIDHeader)
			}
			return nil
		},
		ErrorHandler: f.handleError,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// o cliente desistir não cancela o forward; só o timeout encerra
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), f.timeout)
	defer cancel()

	SetOutcome(r.Context(), domain.OutcomeForwarded)
	f.proxy.ServeHTTP(w, r.WithContext(ctx))
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	outcome := domain.OutcomeBadGateway
	if isTimeout(r.Context(), err) {
		outcome = domain.OutcomeGatewayTimeout
	}
	SetOutcome(r.Context(), outcome)
	f.logger.Warn("upstream error",
		zap.String("outcome", string(outcome)),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeOutcome(w, outcome)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

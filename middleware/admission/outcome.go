package admission

import (
	"context"
	"net/http"
	"sync"

	"flux-gateway/middleware/admission/domain"
)

// outcomeHolder deixa o handler seguinte (Forwarder) informar como o forward terminou.
type outcomeHolder struct {
	mu      sync.Mutex
	outcome domain.Outcome
}

type outcomeKey struct{}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom devolve o id atribuído pelo Middleware, ou "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withOutcomeHolder(ctx context.Context) (context.Context, *outcomeHolder) {
	h := &outcomeHolder{}
	return context.WithValue(ctx, outcomeKey{}, h), h
}

// SetOutcome registra o outcome do forward na requisição, se houver holder.
func SetOutcome(ctx context.Context, o domain.Outcome) {
	if h, ok := ctx.Value(outcomeKey{}).(*outcomeHolder); ok {
		h.mu.Lock()
		h.outcome = o
		h.mu.Unlock()
	}
}

func (h *outcomeHolder) get(def domain.Outcome) domain.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == "" {
		return def
	}
	return h.outcome
}

// statusWriter guarda o status efetivamente escrito.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Package httpserver concentra o ciclo de vida dos http.Server dos binários.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// New cria o servidor com os timeouts padrão.
//
// WriteTimeout precisa ficar acima do timeout de forward do gateway.
func New(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

// Run serve até ctx encerrar e então faz shutdown gracioso (até 10s).
func Run(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, srv, ln, log)
}

// Serve é Run com listener já aberto (útil em testes com porta :0).
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
		case <-stop:
			// Serve já falhou; não há o que desligar
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown error", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(stop)
		<-done
		return err
	}
	<-done
	return nil
}

package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flux-gateway/internal/httpserver"
	"flux-gateway/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadFunc devolve a carga reportada em /health.
type loadFunc func(ctx context.Context) (float64, error)

func newRootCmd() *cobra.Command {
	var (
		listen   string
		fixedCPU float64
		sample   time.Duration
		level    string
	)
	cmd := &cobra.Command{
		Use:           "backend",
		Short:         "Toy protected backend reporting its CPU load on /health",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New(level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			load := cpuSampler{path: "/proc/stat", interval: sample}.Percent
			if fixedCPU >= 0 {
				load = func(context.Context) (float64, error) { return fixedCPU, nil }
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			log.Info("backend starting", zap.String("listen", listen), zap.Float64("fixed_cpu", fixedCPU))
			return httpserver.Run(ctx, httpserver.New(listen, newRouter(load, log)), log)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":5000", "listen address")
	cmd.Flags().Float64Var(&fixedCPU, "cpu", -1, "report this cpu percentage instead of measuring (negative = measure)")
	cmd.Flags().DurationVar(&sample, "sample", 100*time.Millisecond, "cpu sampling interval")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level")
	return cmd
}

func newRouter(load loadFunc, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Flux Protected Backend!"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		cpu, err := load(r.Context())
		if err != nil {
			log.Warn("cpu sample failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unknown"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "alive",
			"cpu":    math.Round(cpu*10) / 10,
		})
	})
	return r
}

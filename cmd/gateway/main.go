package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"flux-gateway/internal/config"
	"flux-gateway/internal/httpserver"
	"flux-gateway/internal/logging"
	"flux-gateway/middleware/admission/infra"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Adaptive admission-control gateway in front of a single backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cfgFile)
			if err != nil {
				return err
			}
			for flag, key := range map[string]string{
				"listen":   "listen_addr",
				"upstream": "upstream_url",
				"redis":    "redis_addr",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			cfg, err := config.LoadGateway(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml/toml); env vars take precedence")
	cmd.Flags().String("listen", "", "listen address (LISTEN_ADDR)")
	cmd.Flags().String("upstream", "", "backend base URL (UPSTREAM_URL)")
	cmd.Flags().String("redis", "", "redis address (REDIS_ADDR)")
	return cmd
}

func run(ctx context.Context, cfg config.Gateway) error {
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rdb, err := infra.NewRedisClient(ctx, infra.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	h, err := newGateway(cfg, rdb, log)
	if err != nil {
		return err
	}

	log.Info("gateway starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("upstream", cfg.UpstreamURL),
		zap.Duration("window", cfg.Window),
		zap.Int("normal_budget", cfg.NormalBudget),
		zap.Int("degraded_budget", cfg.DegradedBudget),
		zap.Bool("stats", cfg.StatsEnabled),
		zap.Bool("metrics", cfg.MetricsEnabled),
		zap.Int("concurrency_max", cfg.ConcurrencyMax))

	return httpserver.Run(ctx, httpserver.New(cfg.ListenAddr, h), log)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"flux-gateway/internal/config"
	"flux-gateway/internal/controlplane"
	"flux-gateway/internal/httpserver"
	"flux-gateway/internal/logging"
	"flux-gateway/middleware/admission/infra"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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

	root := &cobra.Command{
		Use:           "controlplane",
		Short:         "Admin API and CLI for the admission gateway's shared state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/toml); env vars take precedence")

	load := func() (*viper.Viper, error) { return config.New(cfgFile) }
	root.AddCommand(newServeCmd(load), newApplyCmd(load))
	return root
}

func newServeCmd(load func() (*viper.Viper, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := load()
			if err != nil {
				return err
			}
			if err := v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen")); err != nil {
				return err
			}
			cfg, err := config.LoadControlPlane(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("listen", "", "listen address (LISTEN_ADDR)")
	return cmd
}

func newApplyCmd(load func() (*viper.Viper, error)) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a YAML file of reputation actions (ban, unban, seamless, unseamless)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			acts, err := controlplane.LoadActions(file)
			if err != nil {
				return err
			}
			v, err := load()
			if err != nil {
				return err
			}
			// apply não serve HTTP: ADMIN_KEY não é exigido
			v.SetDefault("admin_key", "cli")
			cfg, err := config.LoadControlPlane(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			rdb, err := newRedis(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			applier := controlplane.Applier{
				Store:           infra.NewRedisReputationStore(rdb, infra.WithReputationPrefix(cfg.Prefix)),
				DefaultDuration: cfg.BanDuration,
			}
			results, err := applier.ApplyAll(cmd.Context(), acts)
			for _, res := range results {
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "actions file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRedis(ctx context.Context, cfg config.ControlPlane) (*redis.Client, error) {
	return infra.NewRedisClient(ctx, infra.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func serve(ctx context.Context, cfg config.ControlPlane) error {
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rdb, err := newRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	limiter := infra.NewTokenBucketStore(cfg.RateRPS, cfg.RateBurst)
	limiter.StartJanitor(ctx)

	srv := &controlplane.Server{
		Reputation:   infra.NewRedisReputationStore(rdb, infra.WithReputationPrefix(cfg.Prefix)),
		Config:       infra.NewRedisConfigStore(rdb, infra.WithConfigPrefix(cfg.Prefix)),
		Stats:        infra.NewRedisStatsStore(rdb, infra.WithStatsPrefix(cfg.StatsPrefix)),
		AdminKey:     cfg.AdminKey,
		AllowOrigin:  cfg.AllowOrigin,
		Limiter:      limiter,
		BanDuration:  cfg.BanDuration,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       log,
	}

	log.Info("control plane starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("redis", cfg.Redis.Addr),
		zap.Float64("rate_rps", cfg.RateRPS),
		zap.Int("rate_burst", cfg.RateBurst))

	return httpserver.Run(ctx, httpserver.New(cfg.ListenAddr, srv.Routes()), log)
}

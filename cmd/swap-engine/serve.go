package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/api"
	"github.com/you/swap-engine/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the quote API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			metrics.Serve(ctx, cfg.Metrics.Addr, nil, a.readiness(), a.log)
			if a.redis != nil {
				if err := a.redis.Ping(ctx); err != nil {
					// статический список продолжает работать
					a.log.Warn("redis недоступен, tax-классификация может отказывать", zap.Error(err))
				}
			}
			a.log.Info("swap engine запущен",
				zap.Uint64("chain_id", cfg.Chain.ChainID),
				zap.Uint32s("fee_tiers", cfg.DEX.FeeTiers),
				zap.Duration("tier_timeout", cfg.TierTimeout()),
			)
			return api.StartHTTP(ctx, api.NewServer(a.engine, a.log), cfg.API.Addr)
		},
	}
}

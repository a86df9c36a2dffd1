package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/config"
	"github.com/you/swap-engine/internal/dex/adapters"
	"github.com/you/swap-engine/internal/dex/aggregator"
	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/dex/taxrouter"
	"github.com/you/swap-engine/internal/dex/univ3"
	v2 "github.com/you/swap-engine/internal/dex/v2"
	"github.com/you/swap-engine/internal/engine"
	"github.com/you/swap-engine/internal/liquidity"
	"github.com/you/swap-engine/internal/logger"
	"github.com/you/swap-engine/internal/metrics"
	"github.com/you/swap-engine/internal/multicall"
	"github.com/you/swap-engine/internal/routing"
	"github.com/you/swap-engine/internal/tokens"
)

// app is everything a command needs, built once from the config.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	eth    *ethclient.Client
	ledger *univ3.Ledger
	engine *engine.Engine
	redis  *tokens.RedisClassifier
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.eth != nil {
		a.eth.Close()
	}
	_ = a.log.Sync()
}

func (a *app) readiness() map[string]metrics.Check {
	checks := map[string]metrics.Check{
		"rpc": func(ctx context.Context) error {
			_, err := a.eth.BlockNumber(ctx)
			return err
		},
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	return checks
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфига: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if a.eth, err = ethclient.DialContext(dialCtx, cfg.Chain.RPCHTTP); err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	mc, err := multicall.New(a.eth, addr(cfg.DEX.Multicall))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ledger, err = univ3.NewLedger(a.eth, mc, univ3.LedgerConfig{
		Factory:         addr(cfg.DEX.Factory),
		InitCodeHash:    common.HexToHash(cfg.DEX.InitCodeHash),
		PositionManager: addr(cfg.DEX.PositionManager),
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	reg, err := buildRegistry(cfg, a.eth, mc, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	static, err := tokens.NewStatic(cfg.Tokens.Tax)
	if err != nil {
		a.Close()
		return nil, err
	}
	var classifier tokens.Classifier = static
	if cfg.Redis.Addr != "" {
		a.redis = tokens.NewRedisClassifier(cfg.Redis)
		classifier = tokens.Any{static, a.redis}
	}

	router := routing.New(classifier, buildTiers(cfg, reg), log, routing.WithTierTimeout(cfg.TierTimeout()))
	a.engine = engine.New(router, a.ledger, engine.Config{
		SwapWindow:      liquidity.Window(cfg.Slippage.Swap),
		LiquidityWindow: liquidity.Window(cfg.Slippage.Liquidity),
	}, log)
	return a, nil
}

// buildRegistry registers every venue that has an address configured.
func buildRegistry(cfg *config.Config, eth *ethclient.Client, mc multicall.IClient, log *zap.Logger) (*core.Registry, error) {
	reg := core.NewRegistry()
	connectors := addrs(cfg.DEX.Connectors)

	if cfg.DEX.QuoterV2 != "" {
		q, err := univ3.NewQuoter(mc, univ3.QuoterConfig{
			QuoterV2:     addr(cfg.DEX.QuoterV2),
			Factory:      addr(cfg.DEX.Factory),
			InitCodeHash: common.HexToHash(cfg.DEX.InitCodeHash),
			FeeTiers:     cfg.DEX.FeeTiers,
			Connectors:   connectors,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("инициализация квотера Uniswap: %w", err)
		}
		v := &core.Venue{ID: core.VenueUniswapV3, Tier: core.TierGeneral, Quoter: q}
		if cfg.DEX.SwapRouter != "" {
			if v.Builder, err = univ3.NewCalldataBuilder(addr(cfg.DEX.SwapRouter)); err != nil {
				return nil, err
			}
		}
		reg.Register(v)
	}

	if cfg.TaxRouter.Router != "" {
		tr, err := taxrouter.New(eth, taxrouter.Config{
			Router:   addr(cfg.TaxRouter.Router),
			FeeTiers: cfg.TaxRouter.FeeTiers,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("инициализация tax router: %w", err)
		}
		reg.Register(&core.Venue{ID: core.VenueTaxRouter, Tier: core.TierTaxEnforcing, Quoter: tr, Builder: tr})
	}

	for _, fv := range []struct {
		id     core.VenueID
		router string
	}{
		{core.VenueSushiV2, cfg.Fallback.Sushi.Router},
		{core.VenueCamelotV2, cfg.Fallback.CamelotV2.Router},
	} {
		if fv.router == "" {
			continue
		}
		pool, err := v2.New(fv.id, eth, addr(fv.router), connectors, log)
		if err != nil {
			return nil, fmt.Errorf("инициализация %s: %w", fv.id, err)
		}
		reg.Register(&core.Venue{ID: fv.id, Tier: core.TierCrossVenueFallback, Quoter: pool, Builder: pool})
	}

	if cfg.Fallback.AggregatorURL != "" {
		agg, err := aggregator.New(aggregator.Config{
			BaseURL:   cfg.Fallback.AggregatorURL,
			APIKey:    cfg.Fallback.AggregatorKey,
			RateLimit: cfg.Fallback.RateLimitRPS,
		}, log)
		if err != nil {
			return nil, err
		}
		reg.Register(&core.Venue{ID: core.VenueAggregator, Tier: core.TierCrossVenueFallback, Quoter: agg})
	}
	return reg, nil
}

// buildTiers turns the registry into the tier list of the orchestrator. A
// tier with no registered venue is left out and counts as unavailable.
func buildTiers(cfg *config.Config, reg *core.Registry) []routing.Tier {
	var out []routing.Tier
	for _, t := range []struct {
		tier core.RouteTier
		ids  []core.VenueID
	}{
		{core.TierTaxEnforcing, cfg.Routing.Tax},
		{core.TierGeneral, cfg.Routing.General},
		{core.TierCrossVenueFallback, cfg.Routing.Fallback},
	} {
		venues := reg.ByTier(t.tier, t.ids)
		if len(venues) == 0 {
			continue
		}
		chain := adapters.NewChain(venues...)
		out = append(out, routing.Tier{Tier: t.tier, Quoter: chain, Builder: chain})
	}
	return out
}

func addr(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func addrs(ss []string) []common.Address {
	out := make([]common.Address, 0, len(ss))
	for _, s := range ss {
		if common.IsHexAddress(s) {
			out = append(out, common.HexToAddress(s))
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/dex/univ3"
	"github.com/you/swap-engine/internal/multicall"
)

func newFeeTiersCmd() *cobra.Command {
	var tiersStr string
	cmd := &cobra.Command{
		Use:   "fee-tiers TOKEN_A TOKEN_B",
		Short: "List the fee tiers that have a deployed pool for a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				if !common.IsHexAddress(a) {
					return fmt.Errorf("%q is not an address", a)
				}
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tiers := parseTiers(tiersStr)
			if len(tiers) == 0 {
				tiers = cfg.DEX.FeeTiers
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
			if err != nil {
				return err
			}
			defer eth.Close()

			mc, err := multicall.New(eth, addr(cfg.DEX.Multicall))
			if err != nil {
				return err
			}

			tokenA, tokenB := common.HexToAddress(args[0]), common.HexToAddress(args[1])
			present, err := univ3.AvailableFeeTiers(ctx, mc, addr(cfg.DEX.Factory), tokenA, tokenB, tiers)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "RPC: %s\n", cfg.Chain.RPCHTTP)
			fmt.Fprintf(out, "Testing tiers: %v\n", tiers)
			if len(present) == 0 {
				fmt.Fprintln(out, "no pools on given tiers")
				return nil
			}
			for _, tp := range present {
				fmt.Fprintf(out, "[fee=%d spacing=%d] %s\n", tp.Fee, tp.TickSpacing, tp.Pool.Hex())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tiersStr, "tiers", "", "fee tiers to test, comma-separated (default: config)")
	return cmd
}

// parseTiers skips entries that are not known fee tiers.
func parseTiers(s string) []uint32 {
	var out []uint32
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			continue
		}
		if _, err := clmath.TickSpacing(uint32(v)); err != nil {
			continue
		}
		out = append(out, uint32(v))
	}
	return out
}

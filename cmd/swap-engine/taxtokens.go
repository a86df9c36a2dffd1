package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/you/swap-engine/internal/tokens"
)

func newTaxTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tax-tokens",
		Short: "Manage the Redis list of fee-on-transfer tokens",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add TOKEN...",
			Short: "Mark tokens as taxed",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				toks, err := parseTokenArgs(args)
				if err != nil {
					return err
				}
				return withTaxList(cmd, func(ctx context.Context, rc *tokens.RedisClassifier) error {
					if err := rc.Mark(ctx, toks...); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "marked %d token(s)\n", len(toks))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove TOKEN...",
			Short: "Drop tokens from the tax list",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				toks, err := parseTokenArgs(args)
				if err != nil {
					return err
				}
				return withTaxList(cmd, func(ctx context.Context, rc *tokens.RedisClassifier) error {
					for _, t := range toks {
						if err := rc.Unmark(ctx, t); err != nil {
							return fmt.Errorf("unmark %s: %w", t.Hex(), err)
						}
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d token(s)\n", len(toks))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print the tax list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTaxList(cmd, func(ctx context.Context, rc *tokens.RedisClassifier) error {
					list, err := rc.List(ctx)
					if err != nil {
						return err
					}
					hexes := make([]string, len(list))
					for i, t := range list {
						hexes[i] = t.Hex()
					}
					sort.Strings(hexes)
					for _, h := range hexes {
						fmt.Fprintln(cmd.OutOrStdout(), h)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func parseTokenArgs(args []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(args))
	for _, a := range args {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%q is not an address", a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

// withTaxList opens the classifier from config, pings it and runs fn.
func withTaxList(cmd *cobra.Command, fn func(context.Context, *tokens.RedisClassifier) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr is not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rc := tokens.NewRedisClassifier(cfg.Redis)
	defer rc.Close()
	if err := rc.Ping(ctx); err != nil {
		return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	return fn(ctx, rc)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/you/swap-engine/internal/api"
	"github.com/you/swap-engine/internal/dex/univ3"
	"github.com/you/swap-engine/internal/engine"
	"github.com/you/swap-engine/internal/types"
)

// humanQuote adds decimal-formatted amounts next to the raw quote.
type humanQuote struct {
	api.SwapQuoteDTO
	AmountInFormatted  string `json:"amountInFormatted"`
	AmountOutFormatted string `json:"amountOutFormatted"`
}

func newQuoteCmd() *cobra.Command {
	var (
		dto     api.SwapRequestDTO
		human   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Route one swap and print the quote as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !common.IsHexAddress(dto.TokenIn) || !common.IsHexAddress(dto.TokenOut) {
				return fmt.Errorf("--in and --out must be addresses")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := context.WithTimeout(parent, timeout)
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var decIn, decOut int
			if human {
				if decIn, err = a.ledger.Decimals(ctx, common.HexToAddress(dto.TokenIn)); err != nil {
					return err
				}
				if decOut, err = a.ledger.Decimals(ctx, common.HexToAddress(dto.TokenOut)); err != nil {
					return err
				}
				dec := decIn
				if types.Direction(strings.ToUpper(dto.Direction)) == types.ExactOut {
					dec = decOut
				}
				raw, err := univ3.ParseAmount(dto.Amount, dec)
				if err != nil {
					return err
				}
				dto.Amount = raw.String()
			}

			req, err := dto.ToRequest()
			if err != nil {
				return err
			}
			sq, err := a.engine.QuoteSwap(ctx, req)
			if err != nil {
				return quoteError(err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if !human {
				return enc.Encode(api.NewSwapQuoteDTO(sq))
			}
			return enc.Encode(humanQuote{
				SwapQuoteDTO:       api.NewSwapQuoteDTO(sq),
				AmountInFormatted:  univ3.FormatAmount(sq.Quote.AmountIn, decIn),
				AmountOutFormatted: univ3.FormatAmount(sq.Quote.AmountOut, decOut),
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&dto.TokenIn, "in", "", "input token address")
	f.StringVar(&dto.TokenOut, "out", "", "output token address")
	f.StringVar(&dto.Amount, "amount", "", "amount in base units, or decimal with --human")
	f.BoolVar(&human, "human", false, "amounts in token decimals instead of base units")
	f.StringVar(&dto.Direction, "direction", "EXACT_IN", "EXACT_IN or EXACT_OUT")
	f.StringVar(&dto.Recipient, "recipient", "", "recipient; enables calldata")
	f.Float64Var(&dto.SlippagePercent, "slippage", 0, "slippage percent, 0 for the recommended one")
	f.Uint64Var(&dto.SrcChainID, "src-chain", 0, "source chain id")
	f.Uint64Var(&dto.DstChainID, "dst-chain", 0, "destination chain id")
	f.DurationVar(&timeout, "timeout", 15*time.Second, "overall timeout")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func quoteError(err error) error {
	kind := engine.Classify(err)
	if kind == engine.KindInternal && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("quote timed out: %w", err)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

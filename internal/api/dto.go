package api

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-engine/internal/engine"
	"github.com/you/swap-engine/internal/fees"
	"github.com/you/swap-engine/internal/liquidity"
	"github.com/you/swap-engine/internal/types"
)

// Amounts travel as decimal strings of raw base units.

type SwapRequestDTO struct {
	TokenIn         string  `json:"tokenIn"`
	TokenOut        string  `json:"tokenOut"`
	Amount          string  `json:"amount"`
	Direction       string  `json:"direction"`
	SrcChainID      uint64  `json:"srcChainId,omitempty"`
	DstChainID      uint64  `json:"dstChainId,omitempty"`
	Recipient       string  `json:"recipient,omitempty"`
	SlippagePercent float64 `json:"slippagePercent,omitempty"`
}

func (d SwapRequestDTO) ToRequest() (types.SwapRequest, error) {
	in, err := parseAddress("tokenIn", d.TokenIn)
	if err != nil {
		return types.SwapRequest{}, err
	}
	out, err := parseAddress("tokenOut", d.TokenOut)
	if err != nil {
		return types.SwapRequest{}, err
	}
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return types.SwapRequest{}, err
	}
	req := types.SwapRequest{
		TokenIn:         in,
		TokenOut:        out,
		Amount:          amount,
		Direction:       types.Direction(strings.ToUpper(d.Direction)),
		SrcChainID:      d.SrcChainID,
		DstChainID:      d.DstChainID,
		SlippagePercent: d.SlippagePercent,
	}
	if req.Direction == "" {
		req.Direction = types.ExactIn
	}
	if d.Recipient != "" {
		if req.Recipient, err = parseAddress("recipient", d.Recipient); err != nil {
			return types.SwapRequest{}, err
		}
	}
	return req, req.Validate()
}

type HopDTO struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Fee      uint32 `json:"fee"`
}

type ExecutionDTO struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type SwapQuoteDTO struct {
	RequestID       string        `json:"requestId"`
	Tier            string        `json:"tier"`
	Venue           string        `json:"venue"`
	Direction       string        `json:"direction"`
	AmountIn        string        `json:"amountIn"`
	AmountOut       string        `json:"amountOut"`
	Path            []HopDTO      `json:"path"`
	GasEstimate     string        `json:"gasEstimate,omitempty"`
	TaxAmount       string        `json:"taxAmount,omitempty"`
	SlippagePercent float64       `json:"slippagePercent"`
	Recommended     float64       `json:"recommendedSlippagePercent"`
	MinAmountOut    string        `json:"minAmountOut,omitempty"`
	MaxAmountIn     string        `json:"maxAmountIn,omitempty"`
	Execution       *ExecutionDTO `json:"execution,omitempty"`
	Attempts        int           `json:"attempts"`
}

func NewSwapQuoteDTO(sq *engine.SwapQuote) SwapQuoteDTO {
	q := sq.Quote
	out := SwapQuoteDTO{
		RequestID:       sq.RequestID,
		Tier:            sq.Tier.String(),
		Venue:           q.Venue,
		Direction:       string(q.Direction),
		AmountIn:        str(q.AmountIn),
		AmountOut:       str(q.AmountOut),
		Path:            make([]HopDTO, 0, len(q.Path)),
		GasEstimate:     str(q.GasEstimate),
		TaxAmount:       str(q.TaxAmount),
		SlippagePercent: sq.SlippagePercent,
		Recommended:     sq.Recommended,
		MinAmountOut:    str(sq.MinAmountOut),
		MaxAmountIn:     str(sq.MaxAmountIn),
		Attempts:        len(sq.Attempts),
	}
	for _, h := range q.Path {
		out.Path = append(out.Path, HopDTO{TokenIn: h.TokenIn.Hex(), TokenOut: h.TokenOut.Hex(), Fee: h.Fee})
	}
	if ex := sq.Execution; ex != nil {
		out.Execution = &ExecutionDTO{To: ex.To.Hex(), Data: "0x" + common.Bytes2Hex(ex.Data), Value: str(ex.Value)}
	}
	return out
}

type HistoryDTO struct {
	Deposited0 string `json:"deposited0"`
	Deposited1 string `json:"deposited1"`
	Withdrawn0 string `json:"withdrawn0"`
	Withdrawn1 string `json:"withdrawn1"`
	Collected0 string `json:"collected0"`
	Collected1 string `json:"collected1"`
}

type LiquidityRequestDTO struct {
	Pool            string      `json:"pool"`
	Amount          string      `json:"amount"`
	Side            string      `json:"side"`
	TokenID         string      `json:"tokenId,omitempty"`
	History         *HistoryDTO `json:"history,omitempty"`
	TickLower       *int        `json:"tickLower,omitempty"`
	TickUpper       *int        `json:"tickUpper,omitempty"`
	MinPercent      *float64    `json:"minPercent,omitempty"`
	MaxPercent      *float64    `json:"maxPercent,omitempty"`
	PriceLower      *float64    `json:"priceLower,omitempty"`
	PriceUpper      *float64    `json:"priceUpper,omitempty"`
	SlippagePercent float64     `json:"slippagePercent,omitempty"`
}

func (d LiquidityRequestDTO) ToRequest() (engine.LiquidityRequest, error) {
	req := engine.LiquidityRequest{
		TickLower:       d.TickLower,
		TickUpper:       d.TickUpper,
		MinPercent:      d.MinPercent,
		MaxPercent:      d.MaxPercent,
		PriceLower:      d.PriceLower,
		PriceUpper:      d.PriceUpper,
		SlippagePercent: d.SlippagePercent,
	}
	if d.SlippagePercent < 0 || math.IsNaN(d.SlippagePercent) {
		return req, fmt.Errorf("%w: negative slippage", types.ErrInvalidRequest)
	}
	var err error
	if d.Pool != "" {
		if req.Pool, err = parseAddress("pool", d.Pool); err != nil {
			return req, err
		}
	}
	if req.Amount, err = parseAmount("amount", d.Amount); err != nil {
		return req, err
	}
	switch strings.ToLower(d.Side) {
	case "", "token0":
		req.Side = liquidity.Token0
	case "token1":
		req.Side = liquidity.Token1
	default:
		return req, fmt.Errorf("%w: side must be token0 or token1", types.ErrInvalidRequest)
	}
	if d.TokenID != "" {
		if req.TokenID, err = parseAmount("tokenId", d.TokenID); err != nil {
			return req, err
		}
	}
	if h := d.History; h != nil {
		var hist liquidity.PositionHistory
		fields := []struct {
			name string
			raw  string
			dst  **big.Int
		}{
			{"deposited0", h.Deposited0, &hist.Deposited0},
			{"deposited1", h.Deposited1, &hist.Deposited1},
			{"withdrawn0", h.Withdrawn0, &hist.Withdrawn0},
			{"withdrawn1", h.Withdrawn1, &hist.Withdrawn1},
			{"collected0", h.Collected0, &hist.Collected0},
			{"collected1", h.Collected1, &hist.Collected1},
		}
		for _, f := range fields {
			if f.raw == "" {
				continue
			}
			if *f.dst, err = parseUint("history."+f.name, f.raw); err != nil {
				return req, err
			}
		}
		req.History = &hist
	}
	return req, nil
}

type LiquidityQuoteDTO struct {
	Pool            string  `json:"pool"`
	Token0          string  `json:"token0"`
	Token1          string  `json:"token1"`
	Fee             uint32  `json:"fee"`
	SqrtPriceX96    string  `json:"sqrtPriceX96"`
	CurrentTick     int     `json:"currentTick"`
	TickLower       int     `json:"tickLower"`
	TickUpper       int     `json:"tickUpper"`
	Zone            string  `json:"zone"`
	Amount0         string  `json:"amount0"`
	Amount1         string  `json:"amount1"`
	Liquidity       string  `json:"liquidity"`
	Amount0Min      string  `json:"amount0Min"`
	Amount1Min      string  `json:"amount1Min"`
	SlippagePercent float64 `json:"slippagePercent"`
	Decimals0       int     `json:"decimals0"`
	Decimals1       int     `json:"decimals1"`
	Price           float64 `json:"price"`
	PriceLower      float64 `json:"priceLower"`
	PriceUpper      float64 `json:"priceUpper"`
	HistoryPaired   string  `json:"historyPairedEstimate,omitempty"`
	SpotPaired      string  `json:"spotPairedEstimate,omitempty"`
}

func liquidityQuoteDTO(lq *engine.LiquidityQuote) LiquidityQuoteDTO {
	out := LiquidityQuoteDTO{
		Pool:            lq.Pool.Hex(),
		Token0:          lq.Token0.Hex(),
		Token1:          lq.Token1.Hex(),
		Fee:             lq.Fee,
		SqrtPriceX96:    str(lq.SqrtPriceX96),
		CurrentTick:     lq.CurrentTick,
		TickLower:       lq.TickLower,
		TickUpper:       lq.TickUpper,
		Zone:            lq.Zone.String(),
		Amount0:         str(lq.Amount0),
		Amount1:         str(lq.Amount1),
		Liquidity:       str(lq.Liquidity),
		Amount0Min:      str(lq.Amount0Min),
		Amount1Min:      str(lq.Amount1Min),
		SlippagePercent: lq.SlippagePercent,
		Decimals0:       lq.Decimals0,
		Decimals1:       lq.Decimals1,
		Price:           lq.Price,
		PriceLower:      lq.PriceLower,
		PriceUpper:      lq.PriceUpper,
	}
	if lq.HistoryEstimate != nil {
		out.HistoryPaired = str(lq.HistoryEstimate.Paired)
	}
	if lq.SpotEstimate != nil {
		out.SpotPaired = str(lq.SpotEstimate.Paired)
	}
	return out
}

type FeesDTO struct {
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

type FeesQuoteDTO struct {
	TokenID   string  `json:"tokenId"`
	Pool      string  `json:"pool"`
	Token0    string  `json:"token0"`
	Token1    string  `json:"token1"`
	Unclaimed FeesDTO `json:"unclaimed"`
	Total     FeesDTO `json:"total"`
}

func feesDTO(f fees.Fees) FeesDTO {
	return FeesDTO{Amount0: str(f.Amount0), Amount1: str(f.Amount1)}
}

type FeeTierDTO struct {
	Fee         uint32 `json:"fee"`
	TickSpacing int    `json:"tickSpacing"`
}

type ErrorDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func str(x *big.Int) string {
	if x == nil {
		return ""
	}
	return x.String()
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address", types.ErrInvalidRequest, field)
	}
	return common.HexToAddress(s), nil
}

func parseUint(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", types.ErrInvalidRequest, field)
	}
	return v, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := parseUint(field, s)
	if err != nil {
		return nil, err
	}
	if v.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s must be positive", types.ErrInvalidRequest, field)
	}
	return v, nil
}

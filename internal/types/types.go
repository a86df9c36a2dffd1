package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-engine/internal/swappath"
)

// ErrInvalidRequest marks a malformed trade request.
var ErrInvalidRequest = errors.New("invalid request")

type Direction string

const (
	ExactIn  Direction = "EXACT_IN"
	ExactOut Direction = "EXACT_OUT"
)

// SwapRequest amounts are raw base units. Amount is the input for ExactIn and
// the output for ExactOut.
type SwapRequest struct {
	TokenIn   common.Address
	TokenOut  common.Address
	Amount    *big.Int
	Direction Direction
	// chain ids; a request is cross-chain when both are set and differ
	SrcChainID uint64
	DstChainID uint64
	Recipient  common.Address
	// 0 means use the recommended tolerance
	SlippagePercent float64
}

func (r SwapRequest) CrossChain() bool {
	return r.SrcChainID != 0 && r.DstChainID != 0 && r.SrcChainID != r.DstChainID
}

func (r SwapRequest) Validate() error {
	switch {
	case r.TokenIn == (common.Address{}) || r.TokenOut == (common.Address{}):
		return fmt.Errorf("%w: token address is zero", ErrInvalidRequest)
	case r.TokenIn == r.TokenOut && !r.CrossChain():
		return fmt.Errorf("%w: tokenIn equals tokenOut", ErrInvalidRequest)
	case r.Amount == nil || r.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case r.Direction != ExactIn && r.Direction != ExactOut:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, r.Direction)
	case r.SlippagePercent < 0:
		return fmt.Errorf("%w: negative slippage", ErrInvalidRequest)
	}
	return nil
}

// HopPrice is a pool's sqrt price before and after the quoted trade. Nil or
// zero values mean the venue did not report them.
type HopPrice struct {
	SqrtPriceBeforeX96 *big.Int
	SqrtPriceAfterX96  *big.Int
}

// Quote is one venue's normalized answer. It is built per request and never reused.
type Quote struct {
	Venue        string
	Path         swappath.Path
	Direction    Direction
	AmountIn     *big.Int
	AmountOut    *big.Int
	Hops         []HopPrice
	TicksCrossed uint32
	GasEstimate  *big.Int
	// tax withheld by a tax-enforcing router, nil elsewhere
	TaxAmount *big.Int
}

// HopCount is the number of hops, falling back to the price list for venues
// that do not expose a path.
func (q Quote) HopCount() int {
	if len(q.Path) > len(q.Hops) {
		return len(q.Path)
	}
	return len(q.Hops)
}

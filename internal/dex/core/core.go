package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-engine/internal/types"
)

type VenueID string

const (
	VenueUniswapV3  VenueID = "uniswap_v3"
	VenueTaxRouter  VenueID = "tax_router"
	VenueSushiV2    VenueID = "sushi_v2"
	VenueCamelotV2  VenueID = "camelot_v2"
	VenueAggregator VenueID = "aggregator"
)

// RouteTier is the priority class of a venue. Lower tiers are tried first.
type RouteTier int

const (
	TierTaxEnforcing RouteTier = iota + 1
	TierGeneral
	TierCrossVenueFallback
)

func (t RouteTier) String() string {
	switch t {
	case TierTaxEnforcing:
		return "tax_enforcing"
	case TierGeneral:
		return "general"
	case TierCrossVenueFallback:
		return "cross_venue_fallback"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

var (
	// ErrRouteUnavailable means one venue could not produce a quote. Callers may try another tier.
	ErrRouteUnavailable = errors.New("route unavailable")
	// ErrInsufficientLiquidity means every pool or fee tier tried reported zero or reverted.
	ErrInsufficientLiquidity = fmt.Errorf("%w: insufficient liquidity", ErrRouteUnavailable)
)

// Unavailable wraps err so it matches ErrRouteUnavailable.
func Unavailable(venue VenueID, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", venue, ErrRouteUnavailable)
	}
	if errors.Is(err, ErrRouteUnavailable) {
		return fmt.Errorf("%s: %w", venue, err)
	}
	return fmt.Errorf("%s: %w: %w", venue, ErrRouteUnavailable, err)
}

// Quoter prices a swap request on one venue or tier.
type Quoter interface {
	Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error)
}

// Execution is an unsigned call a wallet layer can submit.
type Execution struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// ExecutionParams are the user-facing limits baked into calldata.
type ExecutionParams struct {
	Recipient common.Address
	Deadline  time.Time
	// min out for ExactIn, max in for ExactOut
	Limit *big.Int
}

// CalldataBuilder encodes a quote into router calldata. Nothing is signed or sent.
type CalldataBuilder interface {
	BuildCalldata(q *types.Quote, p ExecutionParams) (*Execution, error)
}

type Venue struct {
	ID      VenueID
	Tier    RouteTier
	Quoter  Quoter
	Builder CalldataBuilder
}

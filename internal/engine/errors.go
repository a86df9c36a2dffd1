package engine

import (
	"errors"
	"net/http"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/dex/univ3"
	"github.com/you/swap-engine/internal/fees"
	"github.com/you/swap-engine/internal/liquidity"
	"github.com/you/swap-engine/internal/routing"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/types"
)

// Kind is the caller-facing class of an error.
type Kind int

const (
	KindInternal Kind = iota
	// fix the inputs
	KindMalformed
	// try the cross-venue fallback or another pair
	KindNoLiquidity
	// retry later or widen slippage
	KindRoutesExhausted
	KindMath
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_request"
	case KindNoLiquidity:
		return "no_liquidity"
	case KindRoutesExhausted:
		return "routes_exhausted"
	case KindMath:
		return "undefined_math"
	default:
		return "internal"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformed:
		return http.StatusBadRequest
	case KindNoLiquidity:
		return http.StatusNotFound
	case KindRoutesExhausted:
		return http.StatusServiceUnavailable
	case KindMath:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var malformedErrs = []error{
	types.ErrInvalidRequest,
	swappath.ErrPathDiscontinuity,
	swappath.ErrEmptyPath,
	swappath.ErrFeeOverflow,
	swappath.ErrMalformedPath,
	clmath.ErrDomain,
	clmath.ErrRangeTooNarrow,
	clmath.ErrUnsupportedFeeTier,
	fees.ErrInvalidPosition,
	univ3.ErrPositionNotFound,
}

var mathErrs = []error{
	liquidity.ErrLiquidityMath,
	liquidity.ErrRatioUnavailable,
	fees.ErrInconsistentFeeGrowth,
}

func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var nre *routing.NoRouteError
	if errors.As(err, &nre) {
		if nre.NoLiquidity() {
			return KindNoLiquidity
		}
		return KindRoutesExhausted
	}
	for _, e := range malformedErrs {
		if errors.Is(err, e) {
			return KindMalformed
		}
	}
	if errors.Is(err, univ3.ErrPoolNotFound) {
		return KindNoLiquidity
	}
	for _, e := range mathErrs {
		if errors.Is(err, e) {
			return KindMath
		}
	}
	return KindInternal
}

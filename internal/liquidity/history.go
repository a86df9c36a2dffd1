package liquidity

import (
	"fmt"
	"math/big"
)

// PositionHistory is the per-side bookkeeping of an existing position.
type PositionHistory struct {
	Deposited0, Deposited1 *big.Int
	Withdrawn0, Withdrawn1 *big.Int
	Collected0, Collected1 *big.Int
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

// Net returns deposited - withdrawn - collected for both sides.
func (h PositionHistory) Net() (net0, net1 *big.Int) {
	net0 = new(big.Int).Sub(orZero(h.Deposited0), orZero(h.Withdrawn0))
	net0.Sub(net0, orZero(h.Collected0))
	net1 = new(big.Int).Sub(orZero(h.Deposited1), orZero(h.Withdrawn1))
	net1.Sub(net1, orZero(h.Collected1))
	return net0, net1
}

// RatioFromHistory scales amount by the position's implied net1/net0 ratio.
// ErrRatioUnavailable tells the caller to fall back to ExactAmounts.
func RatioFromHistory(h PositionHistory, amount *big.Int, side Side) (Estimate, error) {
	if amount == nil || amount.Sign() < 0 {
		return Estimate{}, fmt.Errorf("%w: amount must be non-negative", ErrLiquidityMath)
	}
	net0, net1 := h.Net()
	if net0.Sign() <= 0 {
		return Estimate{}, fmt.Errorf("%w: net token0 is %s", ErrRatioUnavailable, net0)
	}
	if net1.Sign() < 0 {
		return Estimate{}, fmt.Errorf("%w: net token1 is %s", ErrRatioUnavailable, net1)
	}

	if side == Token0 {
		paired := new(big.Int).Mul(amount, net1)
		return Estimate{Side: side, Paired: paired.Quo(paired, net0)}, nil
	}
	if net1.Sign() == 0 {
		return Estimate{}, fmt.Errorf("%w: net token1 is zero", ErrRatioUnavailable)
	}
	paired := new(big.Int).Mul(amount, net0)
	return Estimate{Side: side, Paired: paired.Quo(paired, net1)}, nil
}

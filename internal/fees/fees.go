// Package fees computes a position's unclaimed fees from fee-growth snapshots.
package fees

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInconsistentFeeGrowth means a snapshot difference went negative,
	// which only happens when snapshots were read out of order.
	ErrInconsistentFeeGrowth = errors.New("fees: inconsistent fee growth")
	ErrInvalidPosition       = errors.New("fees: invalid position")
)

// Position holds the stored fields of a liquidity position.
type Position struct {
	Liquidity                *big.Int
	TickLower                int
	TickUpper                int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	// already credited on-chain but not collected
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// TickSnapshot is the fee growth recorded outside a boundary tick.
type TickSnapshot struct {
	FeeGrowthOutside0X128 *big.Int
	FeeGrowthOutside1X128 *big.Int
}

// PoolFeeState is the pool's current tick and global fee growth.
type PoolFeeState struct {
	CurrentTick          int
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
}

type Fees struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

type sideInput struct {
	global, outsideLower, outsideUpper, last *big.Int
}

// UnclaimedFees returns the fees accrued since the position's last snapshot.
// TokensOwed is not included.
func UnclaimedFees(pos Position, lower, upper TickSnapshot, pool PoolFeeState) (Fees, error) {
	if pos.TickLower >= pos.TickUpper {
		return Fees{}, fmt.Errorf("%w: tick lower %d >= upper %d", ErrInvalidPosition, pos.TickLower, pos.TickUpper)
	}
	if pos.Liquidity == nil || pos.Liquidity.Sign() < 0 {
		return Fees{}, fmt.Errorf("%w: liquidity must be non-negative", ErrInvalidPosition)
	}

	sides := [2]sideInput{
		{pool.FeeGrowthGlobal0X128, lower.FeeGrowthOutside0X128, upper.FeeGrowthOutside0X128, pos.FeeGrowthInside0LastX128},
		{pool.FeeGrowthGlobal1X128, lower.FeeGrowthOutside1X128, upper.FeeGrowthOutside1X128, pos.FeeGrowthInside1LastX128},
	}
	var out [2]*big.Int
	for i, s := range sides {
		if s.global == nil || s.outsideLower == nil || s.outsideUpper == nil || s.last == nil {
			return Fees{}, fmt.Errorf("%w: missing token%d fee growth snapshot", ErrInvalidPosition, i)
		}
		inside, err := feeGrowthInside(pool.CurrentTick, pos.TickLower, pos.TickUpper, s, i)
		if err != nil {
			return Fees{}, err
		}
		delta := new(big.Int).Sub(inside, s.last)
		if delta.Sign() < 0 {
			return Fees{}, fmt.Errorf("%w: token%d inside growth %s below last snapshot %s", ErrInconsistentFeeGrowth, i, inside, s.last)
		}
		fee := delta.Mul(delta, pos.Liquidity)
		out[i] = fee.Rsh(fee, 128)
	}
	return Fees{Amount0: out[0], Amount1: out[1]}, nil
}

func feeGrowthInside(current, tickLower, tickUpper int, s sideInput, side int) (*big.Int, error) {
	below := new(big.Int).Set(s.outsideLower)
	if current < tickLower {
		below.Sub(s.global, s.outsideLower)
	}
	if below.Sign() < 0 {
		return nil, fmt.Errorf("%w: token%d growth below tick %d is negative", ErrInconsistentFeeGrowth, side, tickLower)
	}

	above := new(big.Int).Set(s.outsideUpper)
	if current >= tickUpper {
		above.Sub(s.global, s.outsideUpper)
	}
	if above.Sign() < 0 {
		return nil, fmt.Errorf("%w: token%d growth above tick %d is negative", ErrInconsistentFeeGrowth, side, tickUpper)
	}

	inside := new(big.Int).Sub(s.global, below)
	inside.Sub(inside, above)
	if inside.Sign() < 0 {
		return nil, fmt.Errorf("%w: token%d growth inside [%d, %d] is negative", ErrInconsistentFeeGrowth, side, tickLower, tickUpper)
	}
	return inside, nil
}

// Total adds the owed amounts to the unclaimed fees.
func (f Fees) Total(owed0, owed1 *big.Int) Fees {
	out := Fees{Amount0: new(big.Int).Set(f.Amount0), Amount1: new(big.Int).Set(f.Amount1)}
	if owed0 != nil {
		out.Amount0.Add(out.Amount0, owed0)
	}
	if owed1 != nil {
		out.Amount1.Add(out.Amount1, owed1)
	}
	return out
}

// Package liquidity derives paired token amounts and liquidity for
// concentrated-liquidity positions. All amounts are raw base units.
package liquidity

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/you/swap-engine/internal/clmath"
)

var (
	// ErrLiquidityMath is returned for undefined arithmetic (zero divisors, inverted bounds).
	ErrLiquidityMath = errors.New("liquidity: undefined math")
	// ErrRatioUnavailable means a position's history cannot produce a ratio.
	ErrRatioUnavailable = errors.New("liquidity: position ratio unavailable")
)

// Side names the token whose amount the caller fixed.
type Side int

const (
	Token0 Side = iota
	Token1
)

func (s Side) String() string {
	if s == Token1 {
		return "token1"
	}
	return "token0"
}

// Zone is where the current price sits relative to a position's range.
type Zone int

const (
	ZoneBelow   Zone = iota // only token0
	ZoneInRange             // both tokens
	ZoneAbove               // only token1
)

func (z Zone) String() string {
	switch z {
	case ZoneBelow:
		return "below"
	case ZoneAbove:
		return "above"
	default:
		return "in_range"
	}
}

// Amounts is the exact mint-time breakdown.
type Amounts struct {
	Amount0   *big.Int
	Amount1   *big.Int
	Liquidity *big.Int
	Zone      Zone
}

// Estimate is a linear approximation of the paired amount. It is only good
// for display near the current price and is never accepted as mint input.
type Estimate struct {
	Side   Side     // side the caller fixed
	Paired *big.Int // amount of the other token
}

func mulDiv(a, b, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrLiquidityMath)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, d), nil
}

func orderBounds(sqrtA, sqrtB *big.Int) (*big.Int, *big.Int, error) {
	if sqrtA == nil || sqrtB == nil || sqrtA.Sign() <= 0 || sqrtB.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: sqrt price bounds must be positive", ErrLiquidityMath)
	}
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Cmp(sqrtB) == 0 {
		return nil, nil, fmt.Errorf("%w: empty price range", ErrLiquidityMath)
	}
	return sqrtA, sqrtB, nil
}

// LiquidityForAmount0 returns amount0*sqrtA*sqrtB / (Q96*(sqrtB-sqrtA)). The
// whole numerator is formed before the single division.
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := orderBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(amount0, sqrtA)
	den := new(big.Int).Mul(clmath.Q96, new(big.Int).Sub(sqrtB, sqrtA))
	return mulDiv(num, sqrtB, den)
}

// LiquidityForAmount1 returns amount1 * Q96 / (sqrtB-sqrtA).
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := orderBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	return mulDiv(amount1, clmath.Q96, new(big.Int).Sub(sqrtB, sqrtA))
}

// Amount0ForLiquidity returns (L<<96)*(sqrtB-sqrtA) / (sqrtB*sqrtA).
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := orderBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Lsh(liquidity, 96)
	return mulDiv(num, new(big.Int).Sub(sqrtB, sqrtA), new(big.Int).Mul(sqrtB, sqrtA))
}

// Amount1ForLiquidity returns L * (sqrtB-sqrtA) / Q96.
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) (*big.Int, error) {
	sqrtA, sqrtB, err := orderBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	return mulDiv(liquidity, new(big.Int).Sub(sqrtB, sqrtA), clmath.Q96)
}

// ZoneOf classifies sqrtP against [sqrtA, sqrtB].
func ZoneOf(sqrtP, sqrtA, sqrtB *big.Int) Zone {
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return ZoneBelow
	case sqrtP.Cmp(sqrtB) >= 0:
		return ZoneAbove
	default:
		return ZoneInRange
	}
}

// ExactAmounts solves the three-zone formula for the liquidity backed by amount
// on the given side and the paired amount of the other token. A side that the
// range cannot hold at the current price yields zero amounts, not an error.
func ExactAmounts(sqrtP, sqrtA, sqrtB, amount *big.Int, side Side) (Amounts, error) {
	if amount == nil || amount.Sign() < 0 {
		return Amounts{}, fmt.Errorf("%w: amount must be non-negative", ErrLiquidityMath)
	}
	if sqrtP == nil || sqrtP.Sign() <= 0 {
		return Amounts{}, fmt.Errorf("%w: pool sqrt price must be positive", ErrLiquidityMath)
	}
	sqrtA, sqrtB, err := orderBounds(sqrtA, sqrtB)
	if err != nil {
		return Amounts{}, err
	}

	out := Amounts{
		Amount0:   new(big.Int),
		Amount1:   new(big.Int),
		Liquidity: new(big.Int),
		Zone:      ZoneOf(sqrtP, sqrtA, sqrtB),
	}

	switch out.Zone {
	case ZoneBelow:
		if side == Token1 {
			return out, nil
		}
		if out.Liquidity, err = LiquidityForAmount0(sqrtA, sqrtB, amount); err != nil {
			return Amounts{}, err
		}
		out.Amount0.Set(amount)

	case ZoneAbove:
		if side == Token0 {
			return out, nil
		}
		if out.Liquidity, err = LiquidityForAmount1(sqrtA, sqrtB, amount); err != nil {
			return Amounts{}, err
		}
		out.Amount1.Set(amount)

	default:
		if side == Token0 {
			if out.Liquidity, err = LiquidityForAmount0(sqrtP, sqrtB, amount); err != nil {
				return Amounts{}, err
			}
			out.Amount0.Set(amount)
			if out.Amount1, err = Amount1ForLiquidity(sqrtA, sqrtP, out.Liquidity); err != nil {
				return Amounts{}, err
			}
		} else {
			if out.Liquidity, err = LiquidityForAmount1(sqrtA, sqrtP, amount); err != nil {
				return Amounts{}, err
			}
			out.Amount1.Set(amount)
			if out.Amount0, err = Amount0ForLiquidity(sqrtP, sqrtB, out.Liquidity); err != nil {
				return Amounts{}, err
			}
		}
	}
	if amount.Sign() > 0 && out.Liquidity.Sign() == 0 {
		return Amounts{}, fmt.Errorf("%w: amount %s backs zero liquidity in this range", ErrLiquidityMath, amount)
	}
	return out, nil
}

// ExactAmountsForTicks is ExactAmounts with the bounds taken from tick indices
// through the bit-exact tick math.
func ExactAmountsForTicks(sqrtP *big.Int, tickLower, tickUpper int, amount *big.Int, side Side) (Amounts, error) {
	sqrtA, err := clmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return Amounts{}, err
	}
	sqrtB, err := clmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return Amounts{}, err
	}
	return ExactAmounts(sqrtP, sqrtA, sqrtB, amount, side)
}

// AmountsForLiquidity returns the token amounts a liquidity magnitude holds at sqrtP.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *big.Int) (amount0, amount1 *big.Int, err error) {
	sqrtA, sqrtB, err = orderBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, nil, err
	}
	switch ZoneOf(sqrtP, sqrtA, sqrtB) {
	case ZoneBelow:
		amount0, err = Amount0ForLiquidity(sqrtA, sqrtB, liquidity)
		return amount0, new(big.Int), err
	case ZoneAbove:
		amount1, err = Amount1ForLiquidity(sqrtA, sqrtB, liquidity)
		return new(big.Int), amount1, err
	}
	if amount0, err = Amount0ForLiquidity(sqrtP, sqrtB, liquidity); err != nil {
		return nil, nil, err
	}
	if amount1, err = Amount1ForLiquidity(sqrtA, sqrtP, liquidity); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// EstimatePairedAmount scales amount by the spot price sqrtP^2/2^192 (or its
// inverse for a token1 amount).
func EstimatePairedAmount(sqrtP, amount *big.Int, side Side) (Estimate, error) {
	if sqrtP == nil || sqrtP.Sign() <= 0 {
		return Estimate{}, fmt.Errorf("%w: pool sqrt price must be positive", ErrLiquidityMath)
	}
	if amount == nil || amount.Sign() < 0 {
		return Estimate{}, fmt.Errorf("%w: amount must be non-negative", ErrLiquidityMath)
	}
	priceX192 := new(big.Int).Mul(sqrtP, sqrtP)

	var paired *big.Int
	var err error
	if side == Token0 {
		paired, err = mulDiv(amount, priceX192, clmath.Q192)
	} else {
		paired, err = mulDiv(amount, clmath.Q192, priceX192)
	}
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Side: side, Paired: paired}, nil
}

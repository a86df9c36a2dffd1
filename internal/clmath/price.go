package clmath

import (
	"fmt"
	"math"
	"math/big"
)

const tickBase = 1.0001

var logTickBase = math.Log(tickBase)

var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int) (float64, error) {
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("%w: tick %d outside [%d, %d]", ErrDomain, tick, MinTick, MaxTick)
	}
	return math.Pow(tickBase, float64(tick)), nil
}

// PriceToTick returns floor(log_1.0001(price)). The float estimate is nudged so
// that TickToPrice(t) <= price < TickToPrice(t+1) holds for the returned t.
func PriceToTick(price float64) (int, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: price %v must be positive and finite", ErrDomain, price)
	}
	f := math.Floor(math.Log(price) / logTickBase)
	if f < MinTick-1 || f > MaxTick+1 {
		return 0, fmt.Errorf("%w: price %v maps outside the tick range", ErrDomain, price)
	}
	t := int(f)
	if math.Pow(tickBase, float64(t)) > price {
		t--
	} else if math.Pow(tickBase, float64(t+1)) <= price {
		t++
	}
	if t < MinTick || t > MaxTick {
		return 0, fmt.Errorf("%w: price %v maps to tick %d", ErrDomain, price, t)
	}
	return t, nil
}

// SqrtPriceToPrice converts a Q64.96 sqrt price into a human price of token0
// in units of token1. The division happens on integers scaled by 1e18; only
// the final quotient is turned into a float.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 int) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("%w: sqrt price must be positive (pool not initialized?)", ErrDomain)
	}
	if decimals0 < 0 || decimals1 < 0 {
		return 0, fmt.Errorf("%w: negative decimals %d/%d", ErrDomain, decimals0, decimals1)
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num.Mul(num, priceScale)
	num.Mul(num, pow10(decimals0))
	den := new(big.Int).Mul(Q192, pow10(decimals1))
	num.Quo(num, den)

	f := new(big.Float).SetInt(num)
	f.Quo(f, new(big.Float).SetInt(priceScale))
	out, _ := f.Float64()
	return out, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

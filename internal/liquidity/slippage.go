package liquidity

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Window bounds a slippage percent. Default applies when no usable percent is given.
type Window struct {
	Min     float64
	Max     float64
	Default float64
}

var (
	LiquidityWindow = Window{Min: 0.05, Max: 5, Default: 0.5}
	SwapWindow      = Window{Min: 0.05, Max: 5, Default: 0.5}
)

// Clamp returns percent pinned into the window.
func (w Window) Clamp(percent float64) float64 {
	if math.IsNaN(percent) || percent <= 0 {
		percent = w.Default
	}
	if percent < w.Min {
		return w.Min
	}
	if percent > w.Max {
		return w.Max
	}
	return percent
}

// Bps converts a clamped percent to basis points, rounded half away from zero.
func (w Window) Bps(percent float64) int64 {
	return decimal.NewFromFloat(w.Clamp(percent)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

var bpsDenom = big.NewInt(10000)

// ApplySlippage returns amount * (10000 - bps) / 10000.
func ApplySlippage(amount *big.Int, percent float64, w Window) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", ErrLiquidityMath)
	}
	out := new(big.Int).Mul(amount, big.NewInt(10000-w.Bps(percent)))
	return out.Quo(out, bpsDenom), nil
}

// MaxWithSlippage returns amount * (10000 + bps) / 10000 rounded up, the
// ceiling for an exact-output input amount.
func MaxWithSlippage(amount *big.Int, percent float64, w Window) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", ErrLiquidityMath)
	}
	out := new(big.Int).Mul(amount, big.NewInt(10000+w.Bps(percent)))
	out.Add(out, big.NewInt(9999))
	return out.Quo(out, bpsDenom), nil
}

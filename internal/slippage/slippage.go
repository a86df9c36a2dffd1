// Package slippage recommends a slippage tolerance from a quote's price impact.
package slippage

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/you/swap-engine/internal/types"
)

const (
	SingleHopMin     = 0.05
	SingleHopMax     = 5.0
	SingleHopDefault = 0.5
	MultiHopMin      = 0.1
	MultiHopMax      = 5.0
	MultiHopDefault  = 0.75
)

var impactScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PriceChange returns |after^2 - before^2| / before^2 for one hop. Decimal
// scaling cancels in the ratio. ok is false when the pair is unusable.
func PriceChange(h types.HopPrice) (change float64, ok bool) {
	before, after := h.SqrtPriceBeforeX96, h.SqrtPriceAfterX96
	if before == nil || after == nil || before.Sign() <= 0 || after.Sign() <= 0 {
		return 0, false
	}
	b2 := new(big.Int).Mul(before, before)
	diff := new(big.Int).Mul(after, after)
	diff.Sub(diff, b2).Abs(diff)
	diff.Mul(diff, impactScale).Quo(diff, b2)

	f, _ := new(big.Float).Quo(new(big.Float).SetInt(diff), new(big.Float).SetInt(impactScale)).Float64()
	return f, true
}

// Recommend returns a percent for a trade over len(hops) hops.
func Recommend(hops []types.HopPrice) float64 {
	return recommend(hops, len(hops))
}

// ForQuote recommends a percent for a normalized quote.
func ForQuote(q types.Quote) float64 {
	return recommend(q.Hops, q.HopCount())
}

func recommend(hops []types.HopPrice, hopCount int) float64 {
	var total float64
	usable := false
	for _, h := range hops {
		if pc, ok := PriceChange(h); ok {
			total += pc
			usable = true
		}
	}
	multi := hopCount > 1
	if !usable {
		if multi {
			return MultiHopDefault
		}
		return SingleHopDefault
	}
	if multi {
		return round2(clamp(total*100*1.3+0.1, MultiHopMin, MultiHopMax))
	}
	return round2(clamp(total*100*1.2+0.05, SingleHopMin, SingleHopMax))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

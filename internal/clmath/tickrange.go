package clmath

import (
	"fmt"
	"math"
)

// ComputeRange derives a position's boundary ticks from percentage offsets
// around currentTick. A nil percent selects the full-range bound on that side.
// The lower bound is floored and the upper bound ceiled to spacing.
func ComputeRange(currentTick int, minPercent, maxPercent *float64, spacing int) (lower, upper int, err error) {
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("%w: tick spacing %d", ErrDomain, spacing)
	}
	if currentTick < MinTick || currentTick > MaxTick {
		return 0, 0, fmt.Errorf("%w: current tick %d", ErrDomain, currentTick)
	}
	minUsable, maxUsable := UsableTickBounds(spacing)

	lower = minUsable
	if minPercent != nil {
		raw, err := offsetTick(currentTick, *minPercent)
		if err != nil {
			return 0, 0, err
		}
		lower = clampTick(int(math.Floor(raw/float64(spacing)))*spacing, minUsable, maxUsable)
	}

	upper = maxUsable
	if maxPercent != nil {
		raw, err := offsetTick(currentTick, *maxPercent)
		if err != nil {
			return 0, 0, err
		}
		upper = clampTick(int(math.Ceil(raw/float64(spacing)))*spacing, minUsable, maxUsable)
	}

	if lower >= upper {
		return 0, 0, fmt.Errorf("%w: lower %d >= upper %d at spacing %d", ErrRangeTooNarrow, lower, upper, spacing)
	}
	return lower, upper, nil
}

func offsetTick(currentTick int, percent float64) (float64, error) {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent <= -100 {
		return 0, fmt.Errorf("%w: percent %v", ErrDomain, percent)
	}
	return float64(currentTick) + math.Log(1+percent/100)/logTickBase, nil
}

func clampTick(aligned, minUsable, maxUsable int) int {
	if aligned < minUsable {
		return minUsable
	}
	if aligned > maxUsable {
		return maxUsable
	}
	return aligned
}

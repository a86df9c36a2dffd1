package clmath

import "fmt"

var tickSpacings = map[uint32]int{
	100:   1,
	200:   4,
	300:   6,
	400:   8,
	500:   10,
	3000:  60,
	10000: 200,
}

// TickSpacing returns the tick spacing enforced for a fee tier (hundredths of a bip).
func TickSpacing(feeTier uint32) (int, error) {
	s, ok := tickSpacings[feeTier]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFeeTier, feeTier)
	}
	return s, nil
}

// FeeTiers lists every fee tier with a known spacing, ascending.
func FeeTiers() []uint32 {
	return []uint32{100, 200, 300, 400, 500, 3000, 10000}
}

// UsableTickBounds returns the outermost multiples of spacing inside [MinTick, MaxTick].
func UsableTickBounds(spacing int) (lower, upper int) {
	// Go division truncates toward zero, which keeps both bounds inside the range
	return MinTick / spacing * spacing, MaxTick / spacing * spacing
}

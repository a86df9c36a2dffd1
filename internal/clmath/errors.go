package clmath

import "errors"

var (
	// ErrDomain is returned for prices, ticks and sqrt prices outside the curve.
	ErrDomain = errors.New("clmath: input outside domain")
	// ErrRangeTooNarrow means lower and upper collapsed after spacing alignment.
	ErrRangeTooNarrow = errors.New("clmath: tick range too narrow")
	// ErrUnsupportedFeeTier is returned for fee tiers without a known tick spacing.
	ErrUnsupportedFeeTier = errors.New("clmath: unsupported fee tier")
)

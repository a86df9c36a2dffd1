package routing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/you/swap-engine/internal/dex/core"
)

// ErrNoRouteFound means every tier was tried and none produced a usable quote.
var ErrNoRouteFound = errors.New("no route found")

type State int

const (
	StateStart State = iota
	StateTryTax
	StateTryGeneral
	StateTryFallback
	StateQuoted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateTryTax:
		return "try_tax"
	case StateTryGeneral:
		return "try_general"
	case StateTryFallback:
		return "try_fallback"
	case StateQuoted:
		return "quoted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool { return s == StateQuoted || s == StateFailed }

// tierOf maps a trying state to the tier it consults.
func (s State) tier() core.RouteTier {
	switch s {
	case StateTryTax:
		return core.TierTaxEnforcing
	case StateTryGeneral:
		return core.TierGeneral
	case StateTryFallback:
		return core.TierCrossVenueFallback
	}
	return 0
}

// Attempt is one tier's outcome within a request.
type Attempt struct {
	Tier    core.RouteTier
	Err     error
	Latency time.Duration
}

// NoRouteError carries every attempt of a request that ended in StateFailed.
type NoRouteError struct {
	RequestID string
	Attempts  []Attempt
}

func (e *NoRouteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s after %d tier attempts", ErrNoRouteFound, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Tier, a.Err)
	}
	return b.String()
}

func (e *NoRouteError) Is(target error) bool { return target == ErrNoRouteFound }

func (e *NoRouteError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			out = append(out, a.Err)
		}
	}
	return out
}

// NoLiquidity reports whether every tier failed for lack of liquidity rather
// than being unreachable.
func (e *NoRouteError) NoLiquidity() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !errors.Is(a.Err, core.ErrInsufficientLiquidity) {
			return false
		}
	}
	return true
}

package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/types"
)

// Chain folds the venues of one tier into a single quoter: venues are asked
// in order and the first usable quote wins. Calldata is built by the venue
// that produced the quote.
type Chain struct {
	venues []*core.Venue
}

func NewChain(venues ...*core.Venue) *Chain {
	return &Chain{venues: venues}
}

func (c *Chain) Len() int { return len(c.venues) }

func (c *Chain) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	if len(c.venues) == 0 {
		return nil, fmt.Errorf("no venues configured: %w", core.ErrRouteUnavailable)
	}
	var errs []error
	for _, v := range c.venues {
		q, err := v.Quoter.Quote(ctx, req)
		if err == nil && q == nil {
			err = core.Unavailable(v.ID, errors.New("empty quote"))
		}
		if err == nil {
			if q.Venue == "" {
				q.Venue = string(v.ID)
			}
			return q, nil
		}
		if !errors.Is(err, core.ErrRouteUnavailable) {
			return nil, err
		}
		errs = append(errs, err)
	}
	joined := errors.Join(errs...)
	allDry := true
	for _, err := range errs {
		if !errors.Is(err, core.ErrInsufficientLiquidity) {
			allDry = false
			break
		}
	}
	if allDry {
		return nil, fmt.Errorf("%w: %w", core.ErrInsufficientLiquidity, joined)
	}
	return nil, fmt.Errorf("%w: %w", core.ErrRouteUnavailable, joined)
}

// BuildCalldata dispatches to the venue named in the quote.
func (c *Chain) BuildCalldata(q *types.Quote, p core.ExecutionParams) (*core.Execution, error) {
	if q == nil {
		return nil, errors.New("nil quote")
	}
	for _, v := range c.venues {
		if string(v.ID) != q.Venue {
			continue
		}
		if v.Builder == nil {
			return nil, ErrNoCalldata
		}
		return v.Builder.BuildCalldata(q, p)
	}
	return nil, fmt.Errorf("unknown venue %q", q.Venue)
}

// ErrNoCalldata means the venue quotes but has no router calldata to offer.
var ErrNoCalldata = errors.New("venue does not build calldata")

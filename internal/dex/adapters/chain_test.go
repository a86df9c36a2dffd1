package adapters

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/types"
)

type stubQuoter struct {
	q     *types.Quote
	err   error
	calls int
}

func (s *stubQuoter) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	s.calls++
	return s.q, s.err
}

type stubBuilder struct{ to string }

func (b stubBuilder) BuildCalldata(q *types.Quote, p core.ExecutionParams) (*core.Execution, error) {
	return &core.Execution{Data: []byte(b.to)}, nil
}

func TestChain_FirstSuccessWins(t *testing.T) {
	dry := &stubQuoter{err: core.Unavailable(core.VenueSushiV2, core.ErrInsufficientLiquidity)}
	ok := &stubQuoter{q: &types.Quote{AmountOut: big.NewInt(7)}}
	never := &stubQuoter{q: &types.Quote{AmountOut: big.NewInt(9)}}

	c := NewChain(
		&core.Venue{ID: core.VenueSushiV2, Quoter: dry},
		&core.Venue{ID: core.VenueCamelotV2, Quoter: ok, Builder: stubBuilder{"camelot"}},
		&core.Venue{ID: core.VenueAggregator, Quoter: never},
	)
	q, err := c.Quote(context.Background(), types.SwapRequest{})
	require.NoError(t, err)
	assert.Equal(t, "7", q.AmountOut.String())
	assert.Equal(t, string(core.VenueCamelotV2), q.Venue)
	assert.Equal(t, 0, never.calls)

	ex, err := c.BuildCalldata(q, core.ExecutionParams{})
	require.NoError(t, err)
	assert.Equal(t, "camelot", string(ex.Data))
}

func TestChain_EmptyQuoteFallsThrough(t *testing.T) {
	empty := &stubQuoter{}
	ok := &stubQuoter{q: &types.Quote{AmountOut: big.NewInt(3)}}
	c := NewChain(
		&core.Venue{ID: core.VenueSushiV2, Quoter: empty},
		&core.Venue{ID: core.VenueCamelotV2, Quoter: ok},
	)
	q, err := c.Quote(context.Background(), types.SwapRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(core.VenueCamelotV2), q.Venue)
	assert.Equal(t, 1, empty.calls)

	_, err = NewChain(&core.Venue{ID: core.VenueSushiV2, Quoter: empty}).Quote(context.Background(), types.SwapRequest{})
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
	assert.Contains(t, err.Error(), "empty quote")
}

func TestChain_AllUnavailable(t *testing.T) {
	c := NewChain(
		&core.Venue{ID: core.VenueSushiV2, Quoter: &stubQuoter{err: core.Unavailable(core.VenueSushiV2, core.ErrInsufficientLiquidity)}},
		&core.Venue{ID: core.VenueAggregator, Quoter: &stubQuoter{err: core.Unavailable(core.VenueAggregator, errors.New("HTTP 502"))}},
	)
	_, err := c.Quote(context.Background(), types.SwapRequest{})
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
	assert.Contains(t, err.Error(), "HTTP 502")

	c = NewChain(&core.Venue{ID: core.VenueSushiV2, Quoter: &stubQuoter{err: core.Unavailable(core.VenueSushiV2, core.ErrInsufficientLiquidity)}})
	_, err = c.Quote(context.Background(), types.SwapRequest{})
	assert.ErrorIs(t, err, core.ErrInsufficientLiquidity)

	_, err = NewChain().Quote(context.Background(), types.SwapRequest{})
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
}

func TestChain_HardErrorStops(t *testing.T) {
	next := &stubQuoter{q: &types.Quote{}}
	c := NewChain(
		&core.Venue{ID: core.VenueSushiV2, Quoter: &stubQuoter{err: context.Canceled}},
		&core.Venue{ID: core.VenueCamelotV2, Quoter: next},
	)
	_, err := c.Quote(context.Background(), types.SwapRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, next.calls)
}

func TestChain_BuildCalldataWithoutBuilder(t *testing.T) {
	c := NewChain(&core.Venue{ID: core.VenueAggregator, Quoter: &stubQuoter{}})
	_, err := c.BuildCalldata(&types.Quote{Venue: string(core.VenueAggregator)}, core.ExecutionParams{})
	assert.ErrorIs(t, err, ErrNoCalldata)

	_, err = c.BuildCalldata(&types.Quote{Venue: "nope"}, core.ExecutionParams{})
	assert.Error(t, err)
}

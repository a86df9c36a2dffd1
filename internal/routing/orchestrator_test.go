package routing

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/tokens"
	"github.com/you/swap-engine/internal/types"
)

var (
	taxTok  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokIn   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokOut  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	errDown = errors.New("rpc down")
)

// callLog records the order tiers were consulted in.
type callLog struct {
	mu    sync.Mutex
	tiers []core.RouteTier
}

func (l *callLog) add(t core.RouteTier) {
	l.mu.Lock()
	l.tiers = append(l.tiers, t)
	l.mu.Unlock()
}

type stubTier struct {
	tier core.RouteTier
	log  *callLog
	fn   func(ctx context.Context, req types.SwapRequest) (*types.Quote, error)
}

func (s *stubTier) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	s.log.add(s.tier)
	return s.fn(ctx, req)
}

func quoteOK(venue string) func(context.Context, types.SwapRequest) (*types.Quote, error) {
	return func(_ context.Context, req types.SwapRequest) (*types.Quote, error) {
		return &types.Quote{
			Venue:     venue,
			Path:      swappath.Single(req.TokenIn, req.TokenOut, 3000),
			Direction: req.Direction,
			AmountIn:  new(big.Int).Set(req.Amount),
			AmountOut: big.NewInt(990),
		}, nil
	}
}

func fail(err error) func(context.Context, types.SwapRequest) (*types.Quote, error) {
	return func(context.Context, types.SwapRequest) (*types.Quote, error) { return nil, err }
}

type fns struct {
	tax, general, fallback func(context.Context, types.SwapRequest) (*types.Quote, error)
}

func newOrchestrator(t *testing.T, c tokens.Classifier, f fns, opts ...Option) (*Orchestrator, *callLog) {
	t.Helper()
	log := &callLog{}
	var tiers []Tier
	add := func(tier core.RouteTier, fn func(context.Context, types.SwapRequest) (*types.Quote, error)) {
		if fn != nil {
			tiers = append(tiers, Tier{Tier: tier, Quoter: &stubTier{tier: tier, log: log, fn: fn}})
		}
	}
	add(core.TierTaxEnforcing, f.tax)
	add(core.TierGeneral, f.general)
	add(core.TierCrossVenueFallback, f.fallback)
	return New(c, tiers, zap.NewNop(), opts...), log
}

func swapReq(in, out common.Address) types.SwapRequest {
	return types.SwapRequest{TokenIn: in, TokenOut: out, Amount: big.NewInt(1000), Direction: types.ExactIn}
}

func taxList(t *testing.T) tokens.Classifier {
	s, err := tokens.NewStatic([]string{taxTok.Hex()})
	require.NoError(t, err)
	return s
}

func TestQuote_TaxTokenTriesTaxTierFirst(t *testing.T) {
	for _, req := range []types.SwapRequest{swapReq(taxTok, tokOut), swapReq(tokIn, taxTok)} {
		o, calls := newOrchestrator(t, taxList(t), fns{
			tax:      quoteOK("tax_router"),
			general:  quoteOK("uniswap_v3"),
			fallback: quoteOK("aggregator"),
		})
		sel, err := o.Quote(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []core.RouteTier{core.TierTaxEnforcing}, calls.tiers)
		assert.Equal(t, core.TierTaxEnforcing, sel.Tier)
		assert.Equal(t, StateQuoted, sel.State)
		assert.Equal(t, "tax_router", sel.Quote.Venue)
		assert.NotEmpty(t, sel.RequestID)
	}
}

func TestQuote_TaxTierUnavailableFallsThrough(t *testing.T) {
	o, calls := newOrchestrator(t, taxList(t), fns{
		tax:      fail(core.Unavailable(core.VenueTaxRouter, errDown)),
		general:  quoteOK("uniswap_v3"),
		fallback: quoteOK("aggregator"),
	})
	sel, err := o.Quote(context.Background(), swapReq(taxTok, tokOut))
	require.NoError(t, err)
	assert.Equal(t, []core.RouteTier{core.TierTaxEnforcing, core.TierGeneral}, calls.tiers)
	assert.Equal(t, core.TierGeneral, sel.Tier)
	require.Len(t, sel.Attempts, 2)
	assert.ErrorIs(t, sel.Attempts[0].Err, core.ErrRouteUnavailable)
	assert.NoError(t, sel.Attempts[1].Err)
}

func TestQuote_PlainTokenSkipsTaxTier(t *testing.T) {
	o, calls := newOrchestrator(t, taxList(t), fns{
		tax:      quoteOK("tax_router"),
		general:  fail(core.Unavailable(core.VenueUniswapV3, core.ErrInsufficientLiquidity)),
		fallback: quoteOK("sushi_v2"),
	})
	sel, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.NoError(t, err)
	assert.Equal(t, []core.RouteTier{core.TierGeneral, core.TierCrossVenueFallback}, calls.tiers)
	assert.Equal(t, core.TierCrossVenueFallback, sel.Tier)
	assert.Equal(t, "sushi_v2", sel.Quote.Venue)
}

func TestQuote_CrossChainSkipsGeneral(t *testing.T) {
	o, calls := newOrchestrator(t, taxList(t), fns{
		general:  quoteOK("uniswap_v3"),
		fallback: quoteOK("aggregator"),
	})
	req := swapReq(tokIn, tokOut)
	req.SrcChainID, req.DstChainID = 42161, 10
	sel, err := o.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []core.RouteTier{core.TierCrossVenueFallback}, calls.tiers)
	assert.Equal(t, core.TierCrossVenueFallback, sel.Tier)
}

func TestQuote_AllTiersExhausted(t *testing.T) {
	o, calls := newOrchestrator(t, nil, fns{
		general:  fail(core.Unavailable(core.VenueUniswapV3, core.ErrInsufficientLiquidity)),
		fallback: fail(core.Unavailable(core.VenueAggregator, core.ErrInsufficientLiquidity)),
	})
	_, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRouteFound)
	assert.Len(t, calls.tiers, 2)

	var nre *NoRouteError
	require.ErrorAs(t, err, &nre)
	assert.Len(t, nre.Attempts, 2)
	assert.True(t, nre.NoLiquidity())

	o, _ = newOrchestrator(t, nil, fns{
		general:  fail(core.Unavailable(core.VenueUniswapV3, core.ErrInsufficientLiquidity)),
		fallback: fail(core.Unavailable(core.VenueAggregator, errDown)),
	})
	_, err = o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.ErrorAs(t, err, &nre)
	assert.False(t, nre.NoLiquidity())
	assert.ErrorIs(t, err, errDown)
}

func TestQuote_MissingTierCountsAsUnavailable(t *testing.T) {
	o, calls := newOrchestrator(t, nil, fns{fallback: quoteOK("aggregator")})
	sel, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.NoError(t, err)
	assert.Equal(t, []core.RouteTier{core.TierCrossVenueFallback}, calls.tiers)
	require.Len(t, sel.Attempts, 2)
	assert.Equal(t, core.TierGeneral, sel.Attempts[0].Tier)
}

func TestQuote_TierTimeoutAdvances(t *testing.T) {
	o, calls := newOrchestrator(t, nil, fns{
		general: func(ctx context.Context, _ types.SwapRequest) (*types.Quote, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		fallback: quoteOK("aggregator"),
	}, WithTierTimeout(20*time.Millisecond))

	sel, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.NoError(t, err)
	assert.Equal(t, []core.RouteTier{core.TierGeneral, core.TierCrossVenueFallback}, calls.tiers)
	assert.ErrorIs(t, sel.Attempts[0].Err, context.DeadlineExceeded)
	assert.ErrorIs(t, sel.Attempts[0].Err, core.ErrRouteUnavailable)
	assert.GreaterOrEqual(t, sel.Attempts[0].Latency, 20*time.Millisecond)
}

func TestQuote_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o, calls := newOrchestrator(t, nil, fns{
		general: func(ctx context.Context, _ types.SwapRequest) (*types.Quote, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
		fallback: quoteOK("aggregator"),
	})
	_, err := o.Quote(ctx, swapReq(tokIn, tokOut))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoRouteFound)
	assert.Equal(t, []core.RouteTier{core.TierGeneral}, calls.tiers)
}

func TestQuote_MalformedStopsImmediately(t *testing.T) {
	for _, bad := range []error{
		&swappath.DiscontinuityError{Index: 1, Out: tokIn, In: tokOut},
		clmath.ErrDomain,
	} {
		o, calls := newOrchestrator(t, nil, fns{
			general:  fail(bad),
			fallback: quoteOK("aggregator"),
		})
		_, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
		assert.ErrorIs(t, err, bad)
		assert.NotErrorIs(t, err, ErrNoRouteFound)
		assert.Equal(t, []core.RouteTier{core.TierGeneral}, calls.tiers)
	}
}

func TestQuote_UnusableQuoteAdvances(t *testing.T) {
	o, calls := newOrchestrator(t, nil, fns{
		general: func(_ context.Context, req types.SwapRequest) (*types.Quote, error) {
			return &types.Quote{AmountIn: req.Amount, AmountOut: big.NewInt(0)}, nil
		},
		fallback: quoteOK("aggregator"),
	})
	sel, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.NoError(t, err)
	assert.Len(t, calls.tiers, 2)
	assert.ErrorIs(t, sel.Attempts[0].Err, core.ErrInsufficientLiquidity)
}

type brokenClassifier struct{}

func (brokenClassifier) IsTaxToken(context.Context, common.Address) (bool, error) {
	return false, tokens.ErrClassification
}

func TestQuote_ClassificationFailsClosed(t *testing.T) {
	o, calls := newOrchestrator(t, brokenClassifier{}, fns{general: quoteOK("uniswap_v3")})
	_, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	assert.ErrorIs(t, err, tokens.ErrClassification)
	assert.Empty(t, calls.tiers)
}

func TestQuote_InvalidRequest(t *testing.T) {
	o, calls := newOrchestrator(t, nil, fns{general: quoteOK("uniswap_v3")})
	req := swapReq(tokIn, tokOut)
	req.Amount = big.NewInt(0)
	_, err := o.Quote(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.Empty(t, calls.tiers)
}

func TestQuote_TraceStates(t *testing.T) {
	var states []State
	o, _ := newOrchestrator(t, nil, fns{
		general:  fail(core.Unavailable(core.VenueUniswapV3, errDown)),
		fallback: quoteOK("aggregator"),
	}, WithTrace(func(ev TraceEvent) { states = append(states, ev.State) }))

	_, err := o.Quote(context.Background(), swapReq(tokIn, tokOut))
	require.NoError(t, err)
	assert.Equal(t, []State{StateStart, StateTryGeneral, StateTryFallback, StateQuoted}, states)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "try_tax", StateTryTax.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.True(t, StateQuoted.Terminal())
	assert.False(t, StateTryFallback.Terminal())
}

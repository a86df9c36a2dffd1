package univ3

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/multicall"
	"github.com/you/swap-engine/internal/types"
)

func newTestQuoter(t *testing.T, mc multicall.IClient, connectors ...common.Address) *Quoter {
	q, err := NewQuoter(mc, QuoterConfig{
		QuoterV2:   quoterV2,
		FeeTiers:   []uint32{500, 3000},
		Connectors: connectors,
	}, zap.NewNop())
	require.NoError(t, err)
	return q
}

func TestQuoter_BestFeeTier(t *testing.T) {
	a := mustABIs(t)
	pool3000 := PoolAddress(UniswapV3Factory, PoolInitCodeHash, wethAddr, usdcAddr, 3000)
	before := new(big.Int).Mul(clmath.Q96, big.NewInt(50))
	after := new(big.Int).Mul(clmath.Q96, big.NewInt(49))

	mc := &MockMulticallClient{Handler: func(c multicall.Call) multicall.Result {
		if c.Target != quoterV2 {
			if c.Target == pool3000 {
				return multicall.Result{Success: true, ReturnData: packSlot0(t, before, 78244)}
			}
			return multicall.Result{}
		}
		method, path, amount := quoteHandler(t, c.CallData)
		require.Equal(t, "quoteExactInputSingle", method)
		require.Equal(t, "1000000000000000000", amount.String())
		out := big.NewInt(2_400_000_000)
		if path[0].Fee == 3000 {
			out = big.NewInt(2_500_000_000)
		}
		data, err := a.quoter.Methods[method].Outputs.Pack(out, after, uint32(2), big.NewInt(90000))
		require.NoError(t, err)
		return multicall.Result{Success: true, ReturnData: data}
	}}

	q := newTestQuoter(t, mc)
	quote, err := q.Quote(context.Background(), types.SwapRequest{
		TokenIn: wethAddr, TokenOut: usdcAddr, Amount: big.NewInt(1e18), Direction: types.ExactIn,
	})
	require.NoError(t, err)
	require.Len(t, mc.Batches, 1, "quotes and slot0 reads go out in one batch")
	assert.Len(t, mc.Batches[0], 4)

	assert.Equal(t, uint32(3000), quote.Path[0].Fee)
	assert.Equal(t, "2500000000", quote.AmountOut.String())
	assert.Equal(t, "1000000000000000000", quote.AmountIn.String())
	assert.Equal(t, string(core.VenueUniswapV3), quote.Venue)
	assert.Equal(t, uint32(2), quote.TicksCrossed)
	require.Len(t, quote.Hops, 1)
	assert.Equal(t, 0, before.Cmp(quote.Hops[0].SqrtPriceBeforeX96))
	assert.Equal(t, 0, after.Cmp(quote.Hops[0].SqrtPriceAfterX96))
}

func TestQuoter_InsufficientLiquidity(t *testing.T) {
	a := mustABIs(t)
	mc := &MockMulticallClient{Handler: func(c multicall.Call) multicall.Result {
		if c.Target == quoterV2 {
			// zero quote counts as no liquidity too
			method, _, _ := quoteHandler(t, c.CallData)
			if method == "quoteExactInputSingle" {
				data, err := a.quoter.Methods[method].Outputs.Pack(big.NewInt(0), big.NewInt(0), uint32(0), big.NewInt(0))
				require.NoError(t, err)
				return multicall.Result{Success: true, ReturnData: data}
			}
		}
		return multicall.Result{}
	}}

	q := newTestQuoter(t, mc, arbAddr)
	_, err := q.Quote(context.Background(), types.SwapRequest{
		TokenIn: wethAddr, TokenOut: usdcAddr, Amount: big.NewInt(1e18), Direction: types.ExactIn,
	})
	assert.ErrorIs(t, err, core.ErrInsufficientLiquidity)
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
	// 2 direct + 4 two-hop candidates, every one tried
	assert.Contains(t, err.Error(), "6 candidates")
}

func TestQuoter_TwoHopExactOutput(t *testing.T) {
	a := mustABIs(t)
	afterFirst := new(big.Int).Mul(clmath.Q96, big.NewInt(3))
	afterLast := new(big.Int).Mul(clmath.Q96, big.NewInt(7))

	mc := &MockMulticallClient{Handler: func(c multicall.Call) multicall.Result {
		if c.Target != quoterV2 {
			return multicall.Result{Success: true, ReturnData: packSlot0(t, clmath.Q96, 0)}
		}
		method, path, amount := quoteHandler(t, c.CallData)
		if method != "quoteExactOutput" {
			return multicall.Result{}
		}
		require.Equal(t, "5000000", amount.String())
		// encoded path is reversed: it starts at tokenOut
		require.Equal(t, usdcAddr, path[0].TokenIn)
		if path[0].Fee != 500 || path[1].Fee != 3000 {
			return multicall.Result{}
		}
		data, err := a.quoter.Methods[method].Outputs.Pack(big.NewInt(777), []*big.Int{afterLast, afterFirst}, []uint32{1, 3}, big.NewInt(150000))
		require.NoError(t, err)
		return multicall.Result{Success: true, ReturnData: data}
	}}

	q := newTestQuoter(t, mc, arbAddr)
	quote, err := q.Quote(context.Background(), types.SwapRequest{
		TokenIn: wethAddr, TokenOut: usdcAddr, Amount: big.NewInt(5_000_000), Direction: types.ExactOut,
	})
	require.NoError(t, err)
	require.Len(t, quote.Path, 2)
	assert.Equal(t, wethAddr, quote.Path[0].TokenIn)
	assert.Equal(t, arbAddr, quote.Path[0].TokenOut)
	assert.Equal(t, uint32(3000), quote.Path[0].Fee)
	assert.Equal(t, uint32(500), quote.Path[1].Fee)
	assert.Equal(t, "777", quote.AmountIn.String())
	assert.Equal(t, "5000000", quote.AmountOut.String())
	assert.Equal(t, uint32(4), quote.TicksCrossed)
	require.Len(t, quote.Hops, 2)
	assert.Equal(t, 0, afterFirst.Cmp(quote.Hops[0].SqrtPriceAfterX96))
	assert.Equal(t, 0, afterLast.Cmp(quote.Hops[1].SqrtPriceAfterX96))
	assert.Equal(t, 0, clmath.Q96.Cmp(quote.Hops[1].SqrtPriceBeforeX96))
}

func TestQuoter_Unavailable(t *testing.T) {
	q := newTestQuoter(t, &MockMulticallClient{Error: errors.New("rpc timeout")})
	req := types.SwapRequest{TokenIn: wethAddr, TokenOut: usdcAddr, Amount: big.NewInt(1), Direction: types.ExactIn}

	_, err := q.Quote(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
	assert.NotErrorIs(t, err, core.ErrInsufficientLiquidity)

	req.SrcChainID, req.DstChainID = 42161, 1
	_, err = q.Quote(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
}

func TestCandidatePaths(t *testing.T) {
	q := newTestQuoter(t, &MockMulticallClient{}, arbAddr, usdcAddr)
	paths := q.CandidatePaths(wethAddr, usdcAddr)
	// the connector equal to tokenOut is skipped
	assert.Len(t, paths, 2+4)
	for _, p := range paths {
		require.NoError(t, p.Validate())
		assert.Equal(t, wethAddr, p.TokenIn())
		assert.Equal(t, usdcAddr, p.TokenOut())
	}
}

package v2

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/types"
)

var (
	router = common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506")
	weth   = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdc   = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	arb    = common.HexToAddress("0x912CE59144191C1204E64559FE8253a0e49E6548")
)

// fakeRouter prices every hop with a fixed multiplier; routes listed in
// dead revert.
type fakeRouter struct {
	t     *testing.T
	v     *V2
	rate  map[int]int64 // route length -> per-call multiplier
	dead  map[int]bool
	calls int
}

func (f *fakeRouter) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	m, err := f.v.abi.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	args, err := m.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	amount := args[0].(*big.Int)
	route := args[1].([]common.Address)
	if f.dead[len(route)] {
		return nil, errors.New("execution reverted: INSUFFICIENT_LIQUIDITY")
	}

	amounts := make([]*big.Int, len(route))
	r := big.NewInt(f.rate[len(route)])
	if m.Name == "getAmountsOut" {
		amounts[0] = amount
		amounts[len(route)-1] = new(big.Int).Mul(amount, r)
	} else {
		amounts[0] = new(big.Int).Div(amount, r)
		amounts[len(route)-1] = amount
	}
	for i := 1; i < len(route)-1; i++ {
		amounts[i] = big.NewInt(1)
	}
	return m.Outputs.Pack(amounts)
}

func newV2(t *testing.T, rate map[int]int64, dead map[int]bool) (*V2, *fakeRouter) {
	f := &fakeRouter{t: t, rate: rate, dead: dead}
	v, err := New(core.VenueSushiV2, f, router, []common.Address{arb}, zap.NewNop())
	require.NoError(t, err)
	f.v = v
	return v, f
}

func TestQuote_PicksBestRoute(t *testing.T) {
	v, f := newV2(t, map[int]int64{2: 2000, 3: 2100}, nil)

	q, err := v.Quote(context.Background(), types.SwapRequest{
		TokenIn: weth, TokenOut: usdc, Amount: big.NewInt(10), Direction: types.ExactIn,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, "21000", q.AmountOut.String())
	require.Len(t, q.Path, 2)
	assert.Equal(t, arb, q.Path[0].TokenOut)
	assert.Equal(t, uint32(PairFee), q.Path[1].Fee)
	assert.Equal(t, string(core.VenueSushiV2), q.Venue)
	require.Len(t, q.Hops, 2)
	assert.Nil(t, q.Hops[0].SqrtPriceBeforeX96)
}

func TestQuote_ExactOutPrefersLessInput(t *testing.T) {
	v, _ := newV2(t, map[int]int64{2: 2000, 3: 1000}, nil)

	q, err := v.Quote(context.Background(), types.SwapRequest{
		TokenIn: weth, TokenOut: usdc, Amount: big.NewInt(40000), Direction: types.ExactOut,
	})
	require.NoError(t, err)
	assert.Equal(t, "20", q.AmountIn.String())
	assert.Equal(t, "40000", q.AmountOut.String())
	assert.Len(t, q.Path, 1)
}

func TestQuote_Unavailable(t *testing.T) {
	v, _ := newV2(t, map[int]int64{}, map[int]bool{2: true, 3: true})
	_, err := v.Quote(context.Background(), types.SwapRequest{
		TokenIn: weth, TokenOut: usdc, Amount: big.NewInt(1), Direction: types.ExactIn,
	})
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)

	// zero output is no liquidity
	v, _ = newV2(t, map[int]int64{2: 0, 3: 0}, nil)
	_, err = v.Quote(context.Background(), types.SwapRequest{
		TokenIn: weth, TokenOut: usdc, Amount: big.NewInt(1), Direction: types.ExactIn,
	})
	assert.ErrorIs(t, err, core.ErrInsufficientLiquidity)

	_, err = v.Quote(context.Background(), types.SwapRequest{
		TokenIn: weth, TokenOut: usdc, Amount: big.NewInt(1), Direction: types.ExactIn, SrcChainID: 1, DstChainID: 10,
	})
	assert.ErrorIs(t, err, core.ErrRouteUnavailable)
}

func TestBuildCalldata(t *testing.T) {
	v, _ := newV2(t, map[int]int64{2: 2000}, map[int]bool{3: true})
	q, err := v.Quote(context.Background(), types.SwapRequest{
		TokenIn: weth, TokenOut: usdc, Amount: big.NewInt(10), Direction: types.ExactIn,
	})
	require.NoError(t, err)

	ex, err := v.BuildCalldata(q, core.ExecutionParams{Deadline: time.Unix(1_700_000_000, 0), Limit: big.NewInt(19_900)})
	require.NoError(t, err)
	assert.Equal(t, router, ex.To)

	m, err := v.abi.MethodById(ex.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "swapExactTokensForTokens", m.Name)
	args, err := m.Inputs.Unpack(ex.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, "19900", args[1].(*big.Int).String())
	assert.Equal(t, []common.Address{weth, usdc}, args[2].([]common.Address))
}

package univ3

import (
	"context"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/you/swap-engine/internal/multicall"
	"github.com/you/swap-engine/internal/swappath"
)

// MockMulticallClient answers each sub-call through Handler.
type MockMulticallClient struct {
	Handler func(call multicall.Call) multicall.Result
	Error   error
	Batches [][]multicall.Call
}

func (m *MockMulticallClient) Aggregate(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error) {
	m.Batches = append(m.Batches, calls)
	if m.Error != nil {
		return nil, m.Error
	}
	out := make([]multicall.Result, len(calls))
	for i, c := range calls {
		out[i] = m.Handler(c)
	}
	return out, nil
}

var (
	wethAddr = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdcAddr = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	arbAddr  = common.HexToAddress("0x912CE59144191C1204E64559FE8253a0e49E6548")
	quoterV2 = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
)

func mustABIs(t *testing.T) *abis {
	t.Helper()
	a, err := loadABIs()
	require.NoError(t, err)
	return a
}

func methodOf(t *testing.T, a *abi.ABI, data []byte) (*abi.Method, []interface{}) {
	t.Helper()
	m, err := a.MethodById(data[:4])
	require.NoError(t, err)
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return m, args
}

// quoteHandler decodes a QuoterV2 call into its path.
func quoteHandler(t *testing.T, data []byte) (method string, path swappath.Path, amount *big.Int) {
	a := mustABIs(t)
	m, args := methodOf(t, &a.quoter, data)
	switch m.Name {
	case "quoteExactInputSingle", "quoteExactOutputSingle":
		// tuple fields: tokenIn, tokenOut, amount, fee, sqrtPriceLimitX96
		v := reflect.ValueOf(args[0])
		tokenIn := v.Field(0).Interface().(common.Address)
		tokenOut := v.Field(1).Interface().(common.Address)
		fee := v.Field(3).Interface().(*big.Int)
		return m.Name, swappath.Single(tokenIn, tokenOut, uint32(fee.Uint64())), v.Field(2).Interface().(*big.Int)
	default:
		enc := args[0].([]byte)
		decoded, err := swappath.Decode(enc)
		require.NoError(t, err)
		return m.Name, decoded, args[1].(*big.Int)
	}
}

func packSlot0(t *testing.T, sqrtPrice *big.Int, tick int64) []byte {
	a := mustABIs(t)
	out, err := a.pool.Methods["slot0"].Outputs.Pack(sqrtPrice, big.NewInt(tick), uint16(0), uint16(1), uint16(1), uint8(0), true)
	require.NoError(t, err)
	return out
}

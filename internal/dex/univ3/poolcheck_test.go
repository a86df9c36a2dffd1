package univ3

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/swap-engine/internal/multicall"
)

func TestAvailableFeeTiers(t *testing.T) {
	a := mustABIs(t)
	deployed := map[uint32]common.Address{
		500:  common.HexToAddress("0xC6962004f452bE9203591991D15f6b388e09E8D0"),
		3000: common.HexToAddress("0xc473e2aEE3441BF9240Be85eb122aBB059A3B57c"),
	}
	spacing := map[uint32]int64{100: 1, 500: 10, 3000: 60, 10000: 200}

	mc := &MockMulticallClient{Handler: func(c multicall.Call) multicall.Result {
		require.Equal(t, UniswapV3Factory, c.Target)
		m, args := methodOf(t, &a.factory, c.CallData)
		switch m.Name {
		case "getPool":
			token0, token1 := args[0].(common.Address), args[1].(common.Address)
			assert.Equal(t, usdcAddr, token1)
			assert.Equal(t, wethAddr, token0)
			fee := uint32(args[2].(*big.Int).Uint64())
			out, err := m.Outputs.Pack(deployed[fee])
			require.NoError(t, err)
			return multicall.Result{Success: true, ReturnData: out}
		case "feeAmountTickSpacing":
			fee := uint32(args[0].(*big.Int).Uint64())
			out, err := m.Outputs.Pack(big.NewInt(spacing[fee]))
			require.NoError(t, err)
			return multicall.Result{Success: true, ReturnData: out}
		}
		return multicall.Result{}
	}}

	got, err := AvailableFeeTiers(context.Background(), mc, common.Address{}, usdcAddr, wethAddr, []uint32{100, 500, 3000, 10000})
	require.NoError(t, err)
	require.Len(t, mc.Batches, 1)
	assert.Len(t, mc.Batches[0], 8)
	assert.Equal(t, []TierPool{
		{Fee: 500, Pool: deployed[500], TickSpacing: 10},
		{Fee: 3000, Pool: deployed[3000], TickSpacing: 60},
	}, got)
}

func TestAvailableFeeTiersRevertedCall(t *testing.T) {
	mc := &MockMulticallClient{Handler: func(multicall.Call) multicall.Result {
		return multicall.Result{Success: false}
	}}
	got, err := AvailableFeeTiers(context.Background(), mc, common.Address{}, usdcAddr, wethAddr, []uint32{500})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAvailableFeeTiersErrors(t *testing.T) {
	_, err := AvailableFeeTiers(context.Background(), &MockMulticallClient{}, common.Address{}, common.Address{}, wethAddr, []uint32{500})
	assert.Error(t, err)

	mc := &MockMulticallClient{Error: errors.New("rpc down")}
	_, err = AvailableFeeTiers(context.Background(), mc, common.Address{}, usdcAddr, wethAddr, []uint32{500})
	assert.ErrorContains(t, err, "rpc down")
}

package univ3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-engine/internal/multicall"
)

// TierPool is a deployed pool of one fee tier together with its spacing as
// the factory reports it.
type TierPool struct {
	Fee         uint32
	Pool        common.Address
	TickSpacing int
}

// AvailableFeeTiers возвращает существующие тиры и адреса пулов для пары.
// The factory is asked directly, in one batch, so pools deployed outside the
// CREATE2 defaults still show up. Tiers the factory has not enabled are skipped.
func AvailableFeeTiers(ctx context.Context, mc multicall.IClient, factory, tokenA, tokenB common.Address, tiers []uint32) ([]TierPool, error) {
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return nil, fmt.Errorf("token address is zero")
	}
	if len(tiers) == 0 {
		return nil, nil
	}
	a, err := loadABIs()
	if err != nil {
		return nil, err
	}
	if factory == (common.Address{}) {
		factory = UniswapV3Factory
	}
	token0, token1 := SortTokens(tokenA, tokenB)

	// getPool и feeAmountTickSpacing для каждого тира, попарно
	calls := make([]multicall.Call, 0, 2*len(tiers))
	for _, fee := range tiers {
		getPool, err := a.factory.Pack("getPool", token0, token1, big.NewInt(int64(fee)))
		if err != nil {
			return nil, fmt.Errorf("pack getPool: %w", err)
		}
		spacing, err := a.factory.Pack("feeAmountTickSpacing", big.NewInt(int64(fee)))
		if err != nil {
			return nil, fmt.Errorf("pack feeAmountTickSpacing: %w", err)
		}
		calls = append(calls,
			multicall.Call{Target: factory, CallData: getPool},
			multicall.Call{Target: factory, CallData: spacing},
		)
	}
	res, err := mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("factory batch: %w", err)
	}

	var out []TierPool
	for i, fee := range tiers {
		poolRes, spacingRes := res[2*i], res[2*i+1]
		if !poolRes.Success {
			continue
		}
		vals, err := a.factory.Unpack("getPool", poolRes.ReturnData)
		if err != nil || len(vals) != 1 {
			return nil, fmt.Errorf("unpack getPool(fee=%d): %w", fee, err)
		}
		pool := vals[0].(common.Address)
		if pool == (common.Address{}) {
			continue
		}
		tp := TierPool{Fee: fee, Pool: pool}
		if spacingRes.Success {
			if sv, err := a.factory.Unpack("feeAmountTickSpacing", spacingRes.ReturnData); err == nil && len(sv) == 1 {
				tp.TickSpacing = int(sv[0].(*big.Int).Int64())
			}
		}
		out = append(out, tp)
	}
	return out, nil
}

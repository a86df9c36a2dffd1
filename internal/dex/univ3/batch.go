package univ3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-engine/internal/multicall"
)

type batchCall struct {
	target common.Address
	abi    *abi.ABI
	method string
	args   []interface{}
}

// batchResult is the decoded output of one sub-call; ok is false when it
// reverted or could not be decoded.
type batchResult struct {
	outs []interface{}
	ok   bool
}

func runBatch(ctx context.Context, mc multicall.IClient, calls []batchCall) ([]batchResult, error) {
	mcCalls := make([]multicall.Call, len(calls))
	for i, c := range calls {
		data, err := c.abi.Pack(c.method, c.args...)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", c.method, err)
		}
		mcCalls[i] = multicall.Call{Target: c.target, CallData: data}
	}

	results, err := mc.Aggregate(ctx, mcCalls)
	if err != nil {
		return nil, fmt.Errorf("multicall aggregate failed: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(results), len(calls))
	}

	out := make([]batchResult, len(calls))
	for i, res := range results {
		if !res.Success {
			continue
		}
		outs, err := calls[i].abi.Unpack(calls[i].method, res.ReturnData)
		if err != nil || len(outs) == 0 {
			continue
		}
		out[i] = batchResult{outs: outs, ok: true}
	}
	return out, nil
}

// asInt converts int24/uint24 and friends, which go-ethereum decodes as *big.Int.
func asInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case *big.Int:
		if !x.IsInt64() {
			return 0, fmt.Errorf("integer %s out of range", x)
		}
		return int(x.Int64()), nil
	case int32:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	default:
		return 0, fmt.Errorf("unexpected integer type %T", v)
	}
}

func asBig(v interface{}) (*big.Int, error) {
	x, ok := v.(*big.Int)
	if !ok || x == nil {
		return nil, fmt.Errorf("unexpected big integer type %T", v)
	}
	return x, nil
}

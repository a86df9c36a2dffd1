package multicall

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall2 tryAggregate: failed sub-calls come back with success=false
// instead of reverting the whole batch.
const multicallABI = `[
{
    "inputs": [
        {"internalType": "bool", "name": "requireSuccess", "type": "bool"},
        {
            "components": [
                {"internalType": "address", "name": "target", "type": "address"},
                {"internalType": "bytes", "name": "callData", "type": "bytes"}
            ],
            "internalType": "struct Multicall2.Call[]",
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "tryAggregate",
    "outputs": [
        {
            "components": [
                {"internalType": "bool", "name": "success", "type": "bool"},
                {"internalType": "bytes", "name": "returnData", "type": "bytes"}
            ],
            "internalType": "struct Multicall2.Result[]",
            "name": "returnData",
            "type": "tuple[]"
        }
    ],
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

type IClient interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    ethereum.ContractCaller
	addr common.Address
	abi  abi.ABI
}

func New(c ethereum.ContractCaller, multicallAddr common.Address) (*Client, error) {
	if multicallAddr == (common.Address{}) {
		return nil, fmt.Errorf("multicall address is not configured")
	}
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{c: c, addr: multicallAddr, abi: parsedABI}, nil
}

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success    bool
	ReturnData []byte
}

// Aggregate runs calls in one eth_call. Results line up with calls; a reverted
// sub-call has Success=false. An empty return is also reported as a failure.
func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	payload, err := c.abi.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	res, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}

	outs, err := c.abi.Unpack("tryAggregate", res)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	raw := *abi.ConvertType(outs[0], new([]Result)).(*[]Result)
	if len(raw) != len(calls) {
		return nil, fmt.Errorf("tryAggregate returned %d results for %d calls", len(raw), len(calls))
	}

	out := make([]Result, len(raw))
	for i, r := range raw {
		out[i] = Result{Success: r.Success && len(r.ReturnData) > 0, ReturnData: r.ReturnData}
	}
	return out, nil
}

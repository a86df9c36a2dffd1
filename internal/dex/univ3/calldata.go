package univ3

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/types"
)

// Official V3 router address
var SwapRouterAddr = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")

// CalldataBuilder packs SwapRouter calls for a quote. Signing and sending
// belong to the wallet layer.
type CalldataBuilder struct {
	abi    *abis
	router common.Address
}

func NewCalldataBuilder(router common.Address) (*CalldataBuilder, error) {
	a, err := loadABIs()
	if err != nil {
		return nil, err
	}
	if router == (common.Address{}) {
		router = SwapRouterAddr
	}
	return &CalldataBuilder{abi: a, router: router}, nil
}

func (b *CalldataBuilder) BuildCalldata(q *types.Quote, p core.ExecutionParams) (*core.Execution, error) {
	if q == nil || len(q.Path) == 0 {
		return nil, swappath.ErrEmptyPath
	}
	if p.Limit == nil {
		return nil, fmt.Errorf("execution limit is required")
	}
	deadline := big.NewInt(p.Deadline.Unix())

	var input []byte
	var err error
	switch {
	case len(q.Path) == 1 && q.Direction == types.ExactIn:
		h := q.Path[0]
		input, err = b.abi.router.Pack("exactInputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountIn          *big.Int
			AmountOutMinimum  *big.Int
			SqrtPriceLimitX96 *big.Int
		}{h.TokenIn, h.TokenOut, big.NewInt(int64(h.Fee)), p.Recipient, deadline, q.AmountIn, p.Limit, big.NewInt(0)})

	case len(q.Path) == 1:
		h := q.Path[0]
		input, err = b.abi.router.Pack("exactOutputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountOut         *big.Int
			AmountInMaximum   *big.Int
			SqrtPriceLimitX96 *big.Int
		}{h.TokenIn, h.TokenOut, big.NewInt(int64(h.Fee)), p.Recipient, deadline, q.AmountOut, p.Limit, big.NewInt(0)})

	case q.Direction == types.ExactIn:
		var path []byte
		if path, err = swappath.EncodeForward(q.Path); err != nil {
			return nil, err
		}
		input, err = b.abi.router.Pack("exactInput", struct {
			Path             []byte
			Recipient        common.Address
			Deadline         *big.Int
			AmountIn         *big.Int
			AmountOutMinimum *big.Int
		}{path, p.Recipient, deadline, q.AmountIn, p.Limit})

	default:
		var path []byte
		if path, err = swappath.EncodeReverse(q.Path); err != nil {
			return nil, err
		}
		input, err = b.abi.router.Pack("exactOutput", struct {
			Path            []byte
			Recipient       common.Address
			Deadline        *big.Int
			AmountOut       *big.Int
			AmountInMaximum *big.Int
		}{path, p.Recipient, deadline, q.AmountOut, p.Limit})
	}
	if err != nil {
		return nil, fmt.Errorf("pack swap router call: %w", err)
	}
	return &core.Execution{To: b.router, Data: input, Value: big.NewInt(0)}, nil
}

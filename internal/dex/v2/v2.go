package v2

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/types"
)

const routerABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsIn","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"amountInMax","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapTokensForExactTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// PairFee is the constant-product pool fee in hundredths of a bip.
const PairFee = 3000

// V2 quotes a constant-product router (Sushi, Camelot and other forks).
// Hops carry no sqrt prices, so slippage falls back to the defaults.
type V2 struct {
	id         core.VenueID
	caller     ethereum.ContractCaller
	abi        abi.ABI
	router     common.Address
	connectors []common.Address
	log        *zap.Logger
}

func New(id core.VenueID, caller ethereum.ContractCaller, router common.Address, connectors []common.Address, log *zap.Logger) (*V2, error) {
	rABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	if router == (common.Address{}) {
		return nil, fmt.Errorf("%s: router address is not configured", id)
	}
	return &V2{id: id, caller: caller, abi: rABI, router: router, connectors: connectors, log: log}, nil
}

func (v *V2) ID() core.VenueID { return v.id }

// ---------- core.Quoter ----------

// Quote tries the direct pair, then each connector, and keeps the best answer.
func (v *V2) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	if req.CrossChain() {
		return nil, core.Unavailable(v.id, errors.New("cross-chain swaps are not served on-chain"))
	}

	var best *types.Quote
	var lastErr error
	for _, route := range v.routes(req.TokenIn, req.TokenOut) {
		amounts, err := v.amounts(ctx, req, route)
		if err != nil {
			lastErr = err
			v.log.Debug("v2 route failed", zap.String("venue", string(v.id)), zap.Int("hops", len(route)-1), zap.Error(err))
			continue
		}

		q := &types.Quote{
			Venue:     string(v.id),
			Path:      toPath(route),
			Direction: req.Direction,
			AmountIn:  amounts[0],
			AmountOut: amounts[len(amounts)-1],
			Hops:      make([]types.HopPrice, len(route)-1),
		}
		if best == nil ||
			(req.Direction == types.ExactIn && q.AmountOut.Cmp(best.AmountOut) > 0) ||
			(req.Direction == types.ExactOut && q.AmountIn.Cmp(best.AmountIn) < 0) {
			best = q
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = core.ErrInsufficientLiquidity
		}
		return nil, core.Unavailable(v.id, lastErr)
	}
	return best, nil
}

func (v *V2) routes(tokenIn, tokenOut common.Address) [][]common.Address {
	out := [][]common.Address{{tokenIn, tokenOut}}
	for _, mid := range v.connectors {
		if mid == tokenIn || mid == tokenOut {
			continue
		}
		out = append(out, []common.Address{tokenIn, mid, tokenOut})
	}
	return out
}

func (v *V2) amounts(ctx context.Context, req types.SwapRequest, route []common.Address) ([]*big.Int, error) {
	method := "getAmountsOut"
	if req.Direction == types.ExactOut {
		method = "getAmountsIn"
	}
	data, err := v.abi.Pack(method, req.Amount, route)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &v.router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	outs, err := v.abi.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode %s", method)
	}
	amounts, ok := outs[0].([]*big.Int)
	if !ok || len(amounts) != len(route) {
		return nil, errors.New("bad amounts length")
	}
	for _, a := range amounts {
		if a == nil || a.Sign() == 0 {
			return nil, core.ErrInsufficientLiquidity
		}
	}
	return amounts, nil
}

// ---------- core.CalldataBuilder ----------

func (v *V2) BuildCalldata(q *types.Quote, p core.ExecutionParams) (*core.Execution, error) {
	if q == nil || len(q.Path) == 0 {
		return nil, swappath.ErrEmptyPath
	}
	if p.Limit == nil {
		return nil, errors.New("execution limit is required")
	}
	route := q.Path.Tokens()
	deadline := big.NewInt(p.Deadline.Unix())

	var data []byte
	var err error
	if q.Direction == types.ExactIn {
		data, err = v.abi.Pack("swapExactTokensForTokens", q.AmountIn, p.Limit, route, p.Recipient, deadline)
	} else {
		data, err = v.abi.Pack("swapTokensForExactTokens", q.AmountOut, p.Limit, route, p.Recipient, deadline)
	}
	if err != nil {
		return nil, fmt.Errorf("pack v2 swap: %w", err)
	}
	return &core.Execution{To: v.router, Data: data, Value: big.NewInt(0)}, nil
}

func toPath(route []common.Address) swappath.Path {
	p := make(swappath.Path, 0, len(route)-1)
	for i := 0; i+1 < len(route); i++ {
		p = append(p, swappath.Hop{TokenIn: route[i], TokenOut: route[i+1], Fee: PairFee})
	}
	return p
}

package taxrouter

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

// Router wraps the V3 pools and withholds the token tax on every swap it routes.
const routerABI = `[
 {"inputs":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"uint256","name":"amountIn","type":"uint256"}],"name":"quoteExactInput","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"taxAmount","type":"uint256"},{"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"uint256","name":"amountOut","type":"uint256"}],"name":"quoteExactOutput","outputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"taxAmount","type":"uint256"},{"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"components":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"}],"internalType":"struct TaxRouter.ExactInputParams","name":"params","type":"tuple"}],"name":"exactInput","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"components":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"amountInMaximum","type":"uint256"}],"internalType":"struct TaxRouter.ExactOutputParams","name":"params","type":"tuple"}],"name":"exactOutput","outputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"}],"stateMutability":"payable","type":"function"}
]`

type Config struct {
	Router   common.Address
	FeeTiers []uint32
}

// TaxRouter quotes and encodes swaps through the tax-enforcing router. Only
// direct pairs are tried: tax tokens live in a single pool per fee tier.
type TaxRouter struct {
	caller ethereum.ContractCaller
	abi    abi.ABI
	cfg    Config
	log    *zap.Logger
}

func New(caller ethereum.ContractCaller, cfg Config, log *zap.Logger) (*TaxRouter, error) {
	a, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	if cfg.Router == (common.Address{}) {
		return nil, errors.New("tax router address is not configured")
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = []uint32{500, 3000, 10000}
	}
	return &TaxRouter{caller: caller, abi: a, cfg: cfg, log: log}, nil
}

func (r *TaxRouter) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	if req.CrossChain() {
		return nil, core.Unavailable(core.VenueTaxRouter, errors.New("cross-chain swaps are not served on-chain"))
	}

	var best *types.Quote
	var lastErr error
	for _, fee := range r.cfg.FeeTiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := swappath.Single(req.TokenIn, req.TokenOut, fee)
		q, err := r.quotePath(ctx, p, req)
		if err != nil {
			lastErr = err
			r.log.Debug("tax route quote failed", zap.Uint32("fee", fee), zap.Error(err))
			continue
		}
		if best == nil ||
			(req.Direction == types.ExactIn && q.AmountOut.Cmp(best.AmountOut) > 0) ||
			(req.Direction == types.ExactOut && q.AmountIn.Cmp(best.AmountIn) < 0) {
			best = q
		}
	}
	if best == nil {
		if lastErr == nil || !errors.Is(lastErr, core.ErrInsufficientLiquidity) {
			lastErr = fmt.Errorf("%w: no fee tier quoted (last: %v)", core.ErrInsufficientLiquidity, lastErr)
		}
		return nil, core.Unavailable(core.VenueTaxRouter, lastErr)
	}
	return best, nil
}

func (r *TaxRouter) quotePath(ctx context.Context, p swappath.Path, req types.SwapRequest) (*types.Quote, error) {
	method := "quoteExactInput"
	encode := swappath.EncodeForward
	if req.Direction == types.ExactOut {
		method, encode = "quoteExactOutput", swappath.EncodeReverse
	}
	enc, err := encode(p)
	if err != nil {
		return nil, err
	}
	data, err := r.abi.Pack(method, enc, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.cfg.Router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	outs, err := r.abi.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) < 3 {
		return nil, fmt.Errorf("decode %s", method)
	}
	amount, _ := outs[0].(*big.Int)
	tax, _ := outs[1].(*big.Int)
	afters, _ := outs[2].([]*big.Int)
	if amount == nil || amount.Sign() == 0 {
		return nil, core.ErrInsufficientLiquidity
	}

	q := &types.Quote{
		Venue:     string(core.VenueTaxRouter),
		Path:      p,
		Direction: req.Direction,
		TaxAmount: tax,
		Hops:      make([]types.HopPrice, len(p)),
	}
	if req.Direction == types.ExactIn {
		q.AmountIn, q.AmountOut = new(big.Int).Set(req.Amount), amount
	} else {
		q.AmountIn, q.AmountOut = amount, new(big.Int).Set(req.Amount)
		// after-prices follow the reversed path
		for i, j := 0, len(afters)-1; i < j; i, j = i+1, j-1 {
			afters[i], afters[j] = afters[j], afters[i]
		}
	}
	for i := range q.Hops {
		if i < len(afters) {
			q.Hops[i].SqrtPriceAfterX96 = afters[i]
		}
	}
	return q, nil
}

func (r *TaxRouter) BuildCalldata(q *types.Quote, p core.ExecutionParams) (*core.Execution, error) {
	if q == nil || len(q.Path) == 0 {
		return nil, swappath.ErrEmptyPath
	}
	if p.Limit == nil {
		return nil, errors.New("execution limit is required")
	}
	deadline := big.NewInt(p.Deadline.Unix())

	var data []byte
	if q.Direction == types.ExactIn {
		path, err := swappath.EncodeForward(q.Path)
		if err != nil {
			return nil, err
		}
		data, err = r.abi.Pack("exactInput", struct {
			Path             []byte
			Recipient        common.Address
			Deadline         *big.Int
			AmountIn         *big.Int
			AmountOutMinimum *big.Int
		}{path, p.Recipient, deadline, q.AmountIn, p.Limit})
		if err != nil {
			return nil, fmt.Errorf("pack exactInput: %w", err)
		}
	} else {
		path, err := swappath.EncodeReverse(q.Path)
		if err != nil {
			return nil, err
		}
		data, err = r.abi.Pack("exactOutput", struct {
			Path            []byte
			Recipient       common.Address
			Deadline        *big.Int
			AmountOut       *big.Int
			AmountInMaximum *big.Int
		}{path, p.Recipient, deadline, q.AmountOut, p.Limit})
		if err != nil {
			return nil, fmt.Errorf("pack exactOutput: %w", err)
		}
	}
	return &core.Execution{To: r.cfg.Router, Data: data, Value: big.NewInt(0)}, nil
}

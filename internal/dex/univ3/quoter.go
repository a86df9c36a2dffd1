package univ3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/multicall"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/types"
)

// DefaultFeeTiers are swept when no tiers are configured.
var DefaultFeeTiers = []uint32{100, 500, 3000, 10000}

type QuoterConfig struct {
	QuoterV2     common.Address
	Factory      common.Address
	InitCodeHash common.Hash
	FeeTiers     []uint32
	// intermediate tokens for two-hop candidates
	Connectors []common.Address
}

// Quoter is the general on-chain route: it sweeps every fee tier for the
// direct pair and every connector two-hop path through QuoterV2, all in one
// multicall together with slot0 of each pool touched, and keeps the best quote.
type Quoter struct {
	log *zap.Logger
	mc  multicall.IClient
	abi *abis
	cfg QuoterConfig
}

func NewQuoter(mc multicall.IClient, cfg QuoterConfig, log *zap.Logger) (*Quoter, error) {
	a, err := loadABIs()
	if err != nil {
		return nil, err
	}
	if cfg.QuoterV2 == (common.Address{}) {
		return nil, fmt.Errorf("quoter v2 address is not configured")
	}
	if cfg.Factory == (common.Address{}) {
		cfg.Factory = UniswapV3Factory
	}
	if cfg.InitCodeHash == (common.Hash{}) {
		cfg.InitCodeHash = PoolInitCodeHash
	}
	if len(cfg.FeeTiers) == 0 {
		cfg.FeeTiers = DefaultFeeTiers
	}
	return &Quoter{log: log, mc: mc, abi: a, cfg: cfg}, nil
}

// CandidatePaths lists the direct pair on every fee tier, then every
// tokenIn -> connector -> tokenOut combination.
func (q *Quoter) CandidatePaths(tokenIn, tokenOut common.Address) []swappath.Path {
	var out []swappath.Path
	for _, fee := range q.cfg.FeeTiers {
		out = append(out, swappath.Single(tokenIn, tokenOut, fee))
	}
	for _, mid := range q.cfg.Connectors {
		if mid == tokenIn || mid == tokenOut {
			continue
		}
		for _, f1 := range q.cfg.FeeTiers {
			for _, f2 := range q.cfg.FeeTiers {
				out = append(out, swappath.Path{
					{TokenIn: tokenIn, TokenOut: mid, Fee: f1},
					{TokenIn: mid, TokenOut: tokenOut, Fee: f2},
				})
			}
		}
	}
	return out
}

type candidate struct {
	path     swappath.Path
	callIdx  int
	poolIdxs []int
}

type quoteOutput struct {
	amount *big.Int
	afters []*big.Int
	ticks  uint32
	gas    *big.Int
}

func (q *Quoter) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	if req.CrossChain() {
		return nil, core.Unavailable(core.VenueUniswapV3, errors.New("cross-chain swaps are not served on-chain"))
	}
	paths := q.CandidatePaths(req.TokenIn, req.TokenOut)

	var calls []batchCall
	var cands []candidate
	poolCall := make(map[common.Address]int)
	for _, p := range paths {
		bc, err := q.quoteCall(p, req)
		if err != nil {
			q.log.Warn("failed to pack quote data", zap.Error(err), zap.Uint32s("fees", p.Fees()))
			continue
		}
		c := candidate{path: p, callIdx: len(calls)}
		calls = append(calls, bc)
		cands = append(cands, c)
	}
	if len(calls) == 0 {
		return nil, core.Unavailable(core.VenueUniswapV3, errors.New("no valid calls could be constructed"))
	}
	// slot0 of every pool touched, for the before-prices
	for i := range cands {
		for _, h := range cands[i].path {
			pool := PoolAddress(q.cfg.Factory, q.cfg.InitCodeHash, h.TokenIn, h.TokenOut, h.Fee)
			idx, ok := poolCall[pool]
			if !ok {
				idx = len(calls)
				poolCall[pool] = idx
				calls = append(calls, batchCall{target: pool, abi: &q.abi.pool, method: "slot0"})
			}
			cands[i].poolIdxs = append(cands[i].poolIdxs, idx)
		}
	}

	results, err := runBatch(ctx, q.mc, calls)
	if err != nil {
		return nil, core.Unavailable(core.VenueUniswapV3, err)
	}

	var best *types.Quote
	for _, c := range cands {
		res := results[c.callIdx]
		if !res.ok {
			continue
		}
		qo, err := decodeQuote(res.outs, len(c.path))
		if err != nil {
			q.log.Debug("skip undecodable quote", zap.Error(err), zap.Uint32s("fees", c.path.Fees()))
			continue
		}
		if qo.amount.Sign() == 0 {
			continue
		}
		if req.Direction == types.ExactOut {
			// exact output walks the reversed path
			reverse(qo.afters)
		}

		quote := &types.Quote{
			Venue:        string(core.VenueUniswapV3),
			Path:         c.path,
			Direction:    req.Direction,
			TicksCrossed: qo.ticks,
			GasEstimate:  qo.gas,
			Hops:         make([]types.HopPrice, len(c.path)),
		}
		if req.Direction == types.ExactIn {
			quote.AmountIn, quote.AmountOut = new(big.Int).Set(req.Amount), qo.amount
		} else {
			quote.AmountIn, quote.AmountOut = qo.amount, new(big.Int).Set(req.Amount)
		}
		for i, idx := range c.poolIdxs {
			if r := results[idx]; r.ok {
				if before, err := asBig(r.outs[0]); err == nil {
					quote.Hops[i].SqrtPriceBeforeX96 = before
				}
			}
			if i < len(qo.afters) {
				quote.Hops[i].SqrtPriceAfterX96 = qo.afters[i]
			}
		}

		if better(quote, best) {
			best = quote
		}
	}

	if best == nil {
		return nil, core.Unavailable(core.VenueUniswapV3,
			fmt.Errorf("%w: no successful quote for any fee tier (%d candidates)", core.ErrInsufficientLiquidity, len(cands)))
	}
	q.log.Debug("general route quote",
		zap.Uint32s("fees", best.Path.Fees()),
		zap.String("amountIn", best.AmountIn.String()),
		zap.String("amountOut", best.AmountOut.String()),
	)
	return best, nil
}

func (q *Quoter) quoteCall(p swappath.Path, req types.SwapRequest) (batchCall, error) {
	bc := batchCall{target: q.cfg.QuoterV2, abi: &q.abi.quoter}
	if len(p) == 1 {
		h := p[0]
		if req.Direction == types.ExactIn {
			bc.method = "quoteExactInputSingle"
			bc.args = []interface{}{buildExactInputParams(h.TokenIn, h.TokenOut, req.Amount, h.Fee)}
		} else {
			bc.method = "quoteExactOutputSingle"
			bc.args = []interface{}{buildExactOutputParams(h.TokenIn, h.TokenOut, req.Amount, h.Fee)}
		}
		return bc, nil
	}

	if req.Direction == types.ExactIn {
		enc, err := swappath.EncodeForward(p)
		if err != nil {
			return bc, err
		}
		bc.method, bc.args = "quoteExactInput", []interface{}{enc, req.Amount}
	} else {
		enc, err := swappath.EncodeReverse(p)
		if err != nil {
			return bc, err
		}
		bc.method, bc.args = "quoteExactOutput", []interface{}{enc, req.Amount}
	}
	return bc, nil
}

func decodeQuote(outs []interface{}, hops int) (quoteOutput, error) {
	if len(outs) < 4 {
		return quoteOutput{}, fmt.Errorf("expected 4 outputs, got %d", len(outs))
	}
	amount, err := asBig(outs[0])
	if err != nil {
		return quoteOutput{}, err
	}
	gas, err := asBig(outs[3])
	if err != nil {
		return quoteOutput{}, err
	}
	qo := quoteOutput{amount: amount, gas: gas}

	if hops == 1 {
		after, err := asBig(outs[1])
		if err != nil {
			return quoteOutput{}, err
		}
		ticks, ok := outs[2].(uint32)
		if !ok {
			return quoteOutput{}, fmt.Errorf("unexpected ticks type %T", outs[2])
		}
		qo.afters, qo.ticks = []*big.Int{after}, ticks
		return qo, nil
	}

	afters, ok := outs[1].([]*big.Int)
	if !ok {
		return quoteOutput{}, fmt.Errorf("unexpected sqrt price list type %T", outs[1])
	}
	ticks, ok := outs[2].([]uint32)
	if !ok {
		return quoteOutput{}, fmt.Errorf("unexpected ticks list type %T", outs[2])
	}
	qo.afters = append([]*big.Int(nil), afters...)
	for _, t := range ticks {
		qo.ticks += t
	}
	return qo, nil
}

// better prefers more output for exact input and less input for exact output.
func better(q, best *types.Quote) bool {
	if best == nil {
		return true
	}
	if q.Direction == types.ExactIn {
		return q.AmountOut.Cmp(best.AmountOut) > 0
	}
	return q.AmountIn.Cmp(best.AmountIn) < 0
}

func reverse(xs []*big.Int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

func buildExactInputParams(tokenIn, tokenOut common.Address, amountIn *big.Int, fee uint32) interface{} {
	return struct {
		TokenIn           common.Address
		TokenOut          common.Address
		AmountIn          *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	}
}

func buildExactOutputParams(tokenIn, tokenOut common.Address, amountOut *big.Int, fee uint32) interface{} {
	return struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Amount            *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Amount:            amountOut,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/dex/adapters"
	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/dex/univ3"
	"github.com/you/swap-engine/internal/fees"
	"github.com/you/swap-engine/internal/liquidity"
	"github.com/you/swap-engine/internal/metrics"
	"github.com/you/swap-engine/internal/routing"
	"github.com/you/swap-engine/internal/slippage"
	"github.com/you/swap-engine/internal/types"
)

// Router selects a route tier and returns its quote.
type Router interface {
	Quote(ctx context.Context, req types.SwapRequest) (*routing.Selection, error)
}

// Ledger is the read side of the pool contracts.
type Ledger interface {
	PoolAddress(tokenA, tokenB common.Address, fee uint32) common.Address
	PoolState(ctx context.Context, pool common.Address) (*univ3.PoolState, error)
	TickSnapshots(ctx context.Context, pool common.Address, tickLower, tickUpper int) (lower, upper fees.TickSnapshot, err error)
	Position(ctx context.Context, tokenID *big.Int) (*univ3.PositionInfo, error)
	TickSpacing(ctx context.Context, fee uint32) (int, error)
	Decimals(ctx context.Context, token common.Address) (int, error)
}

type Config struct {
	SwapWindow      liquidity.Window
	LiquidityWindow liquidity.Window
	// validity of built calldata
	Deadline time.Duration
}

// Engine exposes the quoting operations. It keeps nothing between requests.
type Engine struct {
	log    *zap.Logger
	router Router
	ledger Ledger
	cfg    Config
	now    func() time.Time
}

func New(router Router, ledger Ledger, cfg Config, log *zap.Logger) *Engine {
	if cfg.SwapWindow == (liquidity.Window{}) {
		cfg.SwapWindow = liquidity.SwapWindow
	}
	if cfg.LiquidityWindow == (liquidity.Window{}) {
		cfg.LiquidityWindow = liquidity.LiquidityWindow
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 20 * time.Minute
	}
	return &Engine{log: log, router: router, ledger: ledger, cfg: cfg, now: time.Now}
}

type SwapQuote struct {
	RequestID string
	Quote     *types.Quote
	Tier      core.RouteTier
	// percent actually applied, after clamping
	SlippagePercent float64
	Recommended     float64
	MinAmountOut    *big.Int // ExactIn only
	MaxAmountIn     *big.Int // ExactOut only
	// nil when the venue cannot encode the swap or no recipient was given
	Execution *core.Execution
	Attempts  []routing.Attempt
}

func (e *Engine) QuoteSwap(ctx context.Context, req types.SwapRequest) (*SwapQuote, error) {
	sel, err := e.router.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	q := sel.Quote

	recommended := slippage.ForQuote(*q)
	pct := req.SlippagePercent
	if pct == 0 {
		pct = recommended
	}
	pct = e.cfg.SwapWindow.Clamp(pct)
	metrics.RecommendedSlippage.Observe(recommended)

	out := &SwapQuote{
		RequestID:       sel.RequestID,
		Quote:           q,
		Tier:            sel.Tier,
		SlippagePercent: pct,
		Recommended:     recommended,
		Attempts:        sel.Attempts,
	}
	var limit *big.Int
	if q.Direction == types.ExactIn {
		if out.MinAmountOut, err = liquidity.ApplySlippage(q.AmountOut, pct, e.cfg.SwapWindow); err != nil {
			return nil, err
		}
		limit = out.MinAmountOut
	} else {
		if out.MaxAmountIn, err = liquidity.MaxWithSlippage(q.AmountIn, pct, e.cfg.SwapWindow); err != nil {
			return nil, err
		}
		limit = out.MaxAmountIn
	}

	if sel.Builder != nil && req.Recipient != (common.Address{}) {
		ex, err := sel.Builder.BuildCalldata(q, core.ExecutionParams{
			Recipient: req.Recipient,
			Deadline:  e.now().Add(e.cfg.Deadline),
			Limit:     limit,
		})
		switch {
		case errors.Is(err, adapters.ErrNoCalldata):
		case err != nil:
			return nil, fmt.Errorf("build calldata: %w", err)
		default:
			out.Execution = ex
		}
	}
	return out, nil
}

// RecommendSlippage is the tolerance suggested for a quote, from the price
// impact of its hops.
func (e *Engine) RecommendSlippage(q types.Quote) float64 {
	return slippage.ForQuote(q)
}

// LiquidityRequest prices a mint. The range comes from exactly one of: an
// existing position, explicit ticks, human price bounds, or a percent window
// around the current price (the default, full range when both percents are nil).
type LiquidityRequest struct {
	Pool   common.Address
	Amount *big.Int
	Side   liquidity.Side

	TokenID *big.Int
	// bookkeeping of TokenID, enables the ratio estimate
	History *liquidity.PositionHistory

	TickLower, TickUpper   *int
	MinPercent, MaxPercent *float64
	// token1 per token0, decimals adjusted
	PriceLower, PriceUpper *float64

	SlippagePercent float64
}

func (r LiquidityRequest) validate() error {
	switch {
	case r.Amount == nil || r.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be positive", types.ErrInvalidRequest)
	case r.Side != liquidity.Token0 && r.Side != liquidity.Token1:
		return fmt.Errorf("%w: unknown side %d", types.ErrInvalidRequest, r.Side)
	case r.SlippagePercent < 0 || math.IsNaN(r.SlippagePercent):
		return fmt.Errorf("%w: slippage must be a non-negative percent", types.ErrInvalidRequest)
	}
	modes := 0
	if r.TokenID != nil {
		modes++
	}
	if r.TickLower != nil || r.TickUpper != nil {
		modes++
	}
	if r.PriceLower != nil || r.PriceUpper != nil {
		modes++
	}
	if r.MinPercent != nil || r.MaxPercent != nil {
		modes++
	}
	if modes > 1 {
		return fmt.Errorf("%w: give one of position, ticks, prices or percents", types.ErrInvalidRequest)
	}
	return nil
}

type LiquidityQuote struct {
	Pool         common.Address
	Token0       common.Address
	Token1       common.Address
	Fee          uint32
	SqrtPriceX96 *big.Int
	CurrentTick  int
	TickLower    int
	TickUpper    int
	liquidity.Amounts
	Amount0Min      *big.Int
	Amount1Min      *big.Int
	SlippagePercent float64
	// ratio implied by the position history; display only
	HistoryEstimate *liquidity.Estimate
	// linear spot-price estimate, set when there is no history estimate;
	// display only
	SpotEstimate *liquidity.Estimate

	Decimals0, Decimals1 int
	// token1 per token0, decimals adjusted
	Price      float64
	PriceLower float64
	PriceUpper float64
}

func (e *Engine) QuoteLiquidityAdd(ctx context.Context, req LiquidityRequest) (*LiquidityQuote, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	pool := req.Pool
	var pos *univ3.PositionInfo
	if req.TokenID != nil {
		var err error
		if pos, err = e.ledger.Position(ctx, req.TokenID); err != nil {
			return nil, err
		}
		derived := e.ledger.PoolAddress(pos.Token0, pos.Token1, pos.Fee)
		if pool == (common.Address{}) {
			pool = derived
		} else if pool != derived {
			return nil, fmt.Errorf("%w: position %s belongs to pool %s", types.ErrInvalidRequest, req.TokenID, derived.Hex())
		}
	}
	if pool == (common.Address{}) {
		return nil, fmt.Errorf("%w: pool is required", types.ErrInvalidRequest)
	}

	st, err := e.ledger.PoolState(ctx, pool)
	if err != nil {
		return nil, err
	}
	if !st.Initialized() {
		return nil, fmt.Errorf("%w: pool %s is not initialized", clmath.ErrDomain, pool.Hex())
	}

	dec0, err := e.ledger.Decimals(ctx, st.Token0)
	if err != nil {
		return nil, fmt.Errorf("token0 decimals: %w", err)
	}
	dec1, err := e.ledger.Decimals(ctx, st.Token1)
	if err != nil {
		return nil, fmt.Errorf("token1 decimals: %w", err)
	}

	lower, upper, err := e.resolveRange(ctx, st, pos, req, dec0, dec1)
	if err != nil {
		return nil, err
	}
	amounts, err := liquidity.ExactAmountsForTicks(st.SqrtPriceX96, lower, upper, req.Amount, req.Side)
	if err != nil {
		return nil, err
	}

	w := e.cfg.LiquidityWindow
	pct := w.Clamp(req.SlippagePercent)
	out := &LiquidityQuote{
		Pool:            pool,
		Token0:          st.Token0,
		Token1:          st.Token1,
		Fee:             st.Fee,
		SqrtPriceX96:    st.SqrtPriceX96,
		CurrentTick:     st.Tick,
		TickLower:       lower,
		TickUpper:       upper,
		Amounts:         amounts,
		SlippagePercent: pct,
		Decimals0:       dec0,
		Decimals1:       dec1,
	}
	if out.Amount0Min, err = liquidity.ApplySlippage(amounts.Amount0, pct, w); err != nil {
		return nil, err
	}
	if out.Amount1Min, err = liquidity.ApplySlippage(amounts.Amount1, pct, w); err != nil {
		return nil, err
	}
	if out.Price, err = clmath.SqrtPriceToPrice(st.SqrtPriceX96, dec0, dec1); err != nil {
		return nil, err
	}
	if out.PriceLower, err = tickPrice(lower, dec0, dec1); err != nil {
		return nil, err
	}
	if out.PriceUpper, err = tickPrice(upper, dec0, dec1); err != nil {
		return nil, err
	}

	if req.History != nil {
		est, err := liquidity.RatioFromHistory(*req.History, req.Amount, req.Side)
		switch {
		case err == nil:
			out.HistoryEstimate = &est
		case errors.Is(err, liquidity.ErrRatioUnavailable):
			e.log.Debug("position ratio unavailable, exact amounts only", zap.Error(err))
		default:
			return nil, err
		}
	}
	if out.HistoryEstimate == nil {
		est, err := liquidity.EstimatePairedAmount(st.SqrtPriceX96, req.Amount, req.Side)
		if err != nil {
			return nil, err
		}
		out.SpotEstimate = &est
	}
	return out, nil
}

func tickPrice(tick, dec0, dec1 int) (float64, error) {
	sqrtP, err := clmath.SqrtRatioAtTick(tick)
	if err != nil {
		return 0, err
	}
	return clmath.SqrtPriceToPrice(sqrtP, dec0, dec1)
}

// priceTick maps a decimals-adjusted price to a raw tick.
func priceTick(price float64, dec0, dec1 int) (int, error) {
	return clmath.PriceToTick(price * math.Pow10(dec1-dec0))
}

// floorTo aligns tick down to a multiple of spacing, ceil up.
func floorTo(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

func ceilTo(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick > 0 {
		q++
	}
	return q * spacing
}

func (e *Engine) resolveRange(ctx context.Context, st *univ3.PoolState, pos *univ3.PositionInfo, req LiquidityRequest, dec0, dec1 int) (int, int, error) {
	if pos != nil {
		return pos.TickLower, pos.TickUpper, nil
	}
	spacing := st.TickSpacing
	if spacing <= 0 {
		var err error
		if spacing, err = e.ledger.TickSpacing(ctx, st.Fee); err != nil {
			return 0, 0, err
		}
	}
	minUsable, maxUsable := clmath.UsableTickBounds(spacing)

	switch {
	case req.TickLower != nil || req.TickUpper != nil:
		if req.TickLower == nil || req.TickUpper == nil {
			return 0, 0, fmt.Errorf("%w: both ticks are required", types.ErrInvalidRequest)
		}
		lower, upper := *req.TickLower, *req.TickUpper
		switch {
		case lower%spacing != 0 || upper%spacing != 0:
			return 0, 0, fmt.Errorf("%w: ticks %d, %d are not multiples of spacing %d", clmath.ErrDomain, lower, upper, spacing)
		case lower < minUsable || upper > maxUsable:
			return 0, 0, fmt.Errorf("%w: ticks %d, %d outside [%d, %d]", clmath.ErrDomain, lower, upper, minUsable, maxUsable)
		case lower >= upper:
			return 0, 0, fmt.Errorf("%w: lower %d >= upper %d", clmath.ErrRangeTooNarrow, lower, upper)
		}
		return lower, upper, nil

	case req.PriceLower != nil || req.PriceUpper != nil:
		if req.PriceLower == nil || req.PriceUpper == nil {
			return 0, 0, fmt.Errorf("%w: both price bounds are required", types.ErrInvalidRequest)
		}
		lt, err := priceTick(*req.PriceLower, dec0, dec1)
		if err != nil {
			return 0, 0, err
		}
		ut, err := priceTick(*req.PriceUpper, dec0, dec1)
		if err != nil {
			return 0, 0, err
		}
		// PriceToTick floors, so an upper price between ticks rounds up one
		if p, _ := clmath.TickToPrice(ut); p*math.Pow10(dec0-dec1) < *req.PriceUpper {
			ut++
		}
		lower, upper := floorTo(lt, spacing), ceilTo(ut, spacing)
		if lower < minUsable {
			lower = minUsable
		}
		if upper > maxUsable {
			upper = maxUsable
		}
		if lower >= upper {
			return 0, 0, fmt.Errorf("%w: prices %v..%v give ticks %d..%d", clmath.ErrRangeTooNarrow, *req.PriceLower, *req.PriceUpper, lower, upper)
		}
		return lower, upper, nil
	}
	return clmath.ComputeRange(st.Tick, req.MinPercent, req.MaxPercent, spacing)
}

type FeesQuote struct {
	TokenID   *big.Int
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Unclaimed fees.Fees
	// Unclaimed plus TokensOwed
	Total fees.Fees
}

// QuoteUnclaimedFees reads a position and its pool and returns the fees it
// could collect now. A zero pool is derived from the position.
func (e *Engine) QuoteUnclaimedFees(ctx context.Context, pool common.Address, tokenID *big.Int) (*FeesQuote, error) {
	if tokenID == nil || tokenID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: token id must be positive", types.ErrInvalidRequest)
	}
	pos, err := e.ledger.Position(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	derived := e.ledger.PoolAddress(pos.Token0, pos.Token1, pos.Fee)
	if pool == (common.Address{}) {
		pool = derived
	} else if pool != derived {
		return nil, fmt.Errorf("%w: position %s belongs to pool %s", types.ErrInvalidRequest, tokenID, derived.Hex())
	}

	var f fees.Fees
	// pool and tick reads are separate calls; a swap landing between them
	// can make the snapshots disagree, so read once more before giving up
	for attempt := 0; attempt < 2; attempt++ {
		var st *univ3.PoolState
		if st, err = e.ledger.PoolState(ctx, pool); err != nil {
			return nil, err
		}
		lower, upper, err2 := e.ledger.TickSnapshots(ctx, pool, pos.TickLower, pos.TickUpper)
		if err2 != nil {
			return nil, err2
		}
		f, err = fees.UnclaimedFees(pos.Position, lower, upper, st.FeeState())
		if !errors.Is(err, fees.ErrInconsistentFeeGrowth) {
			break
		}
		e.log.Warn("fee growth snapshots disagree, re-reading", zap.String("pool", pool.Hex()), zap.Error(err))
	}
	if err != nil {
		return nil, err
	}

	return &FeesQuote{
		TokenID:   tokenID,
		Pool:      pool,
		Token0:    pos.Token0,
		Token1:    pos.Token1,
		Unclaimed: f,
		Total:     f.Total(pos.TokensOwed0, pos.TokensOwed1),
	}, nil
}

// UnclaimedFees is the pure calculation over caller-supplied snapshots.
func UnclaimedFees(pos fees.Position, lower, upper fees.TickSnapshot, pool fees.PoolFeeState) (fees.Fees, error) {
	return fees.UnclaimedFees(pos, lower, upper, pool)
}

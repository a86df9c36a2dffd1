package univ3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/fees"
	"github.com/you/swap-engine/internal/multicall"
)

var (
	ErrPoolNotFound     = errors.New("univ3: pool not found")
	ErrPositionNotFound = errors.New("univ3: position not found")
)

// PoolState is one consistent read of a pool's price and fee accumulators.
type PoolState struct {
	Address              common.Address
	Token0               common.Address
	Token1               common.Address
	Fee                  uint32
	TickSpacing          int
	SqrtPriceX96         *big.Int
	Tick                 int
	Liquidity            *big.Int
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
}

func (s PoolState) Initialized() bool {
	return s.SqrtPriceX96 != nil && s.SqrtPriceX96.Sign() > 0
}

func (s PoolState) FeeState() fees.PoolFeeState {
	return fees.PoolFeeState{
		CurrentTick:          s.Tick,
		FeeGrowthGlobal0X128: s.FeeGrowthGlobal0X128,
		FeeGrowthGlobal1X128: s.FeeGrowthGlobal1X128,
	}
}

// PositionInfo is a NonfungiblePositionManager position.
type PositionInfo struct {
	TokenID *big.Int
	Token0  common.Address
	Token1  common.Address
	Fee     uint32
	fees.Position
}

type LedgerConfig struct {
	Factory         common.Address
	InitCodeHash    common.Hash
	PositionManager common.Address
}

// Ledger is the read side of the pool contracts. It never writes.
type Ledger struct {
	log    *zap.Logger
	caller ethereum.ContractCaller
	mc     multicall.IClient
	abi    *abis
	cfg    LedgerConfig
}

func NewLedger(caller ethereum.ContractCaller, mc multicall.IClient, cfg LedgerConfig, log *zap.Logger) (*Ledger, error) {
	a, err := loadABIs()
	if err != nil {
		return nil, err
	}
	if cfg.Factory == (common.Address{}) {
		cfg.Factory = UniswapV3Factory
	}
	if cfg.InitCodeHash == (common.Hash{}) {
		cfg.InitCodeHash = PoolInitCodeHash
	}
	return &Ledger{log: log, caller: caller, mc: mc, abi: a, cfg: cfg}, nil
}

func (l *Ledger) PoolAddress(tokenA, tokenB common.Address, fee uint32) common.Address {
	return PoolAddress(l.cfg.Factory, l.cfg.InitCodeHash, tokenA, tokenB, fee)
}

// PoolState reads slot0, tokens, fee, spacing, liquidity and global fee growth in one batch.
func (l *Ledger) PoolState(ctx context.Context, pool common.Address) (*PoolState, error) {
	p := &l.abi.pool
	methods := []string{"slot0", "token0", "token1", "fee", "tickSpacing", "liquidity", "feeGrowthGlobal0X128", "feeGrowthGlobal1X128"}
	calls := make([]batchCall, len(methods))
	for i, m := range methods {
		calls[i] = batchCall{target: pool, abi: p, method: m}
	}
	res, err := runBatch(ctx, l.mc, calls)
	if err != nil {
		return nil, fmt.Errorf("read pool %s: %w", pool.Hex(), err)
	}
	for i, r := range res {
		if !r.ok {
			return nil, fmt.Errorf("%w: %s.%s failed", ErrPoolNotFound, pool.Hex(), methods[i])
		}
	}

	st := &PoolState{Address: pool}
	if st.SqrtPriceX96, err = asBig(res[0].outs[0]); err != nil {
		return nil, fmt.Errorf("decode slot0: %w", err)
	}
	if st.Tick, err = asInt(res[0].outs[1]); err != nil {
		return nil, fmt.Errorf("decode slot0 tick: %w", err)
	}
	var ok bool
	if st.Token0, ok = res[1].outs[0].(common.Address); !ok {
		return nil, fmt.Errorf("decode token0: unexpected %T", res[1].outs[0])
	}
	if st.Token1, ok = res[2].outs[0].(common.Address); !ok {
		return nil, fmt.Errorf("decode token1: unexpected %T", res[2].outs[0])
	}
	fee, err := asInt(res[3].outs[0])
	if err != nil {
		return nil, fmt.Errorf("decode fee: %w", err)
	}
	st.Fee = uint32(fee)
	if st.TickSpacing, err = asInt(res[4].outs[0]); err != nil {
		return nil, fmt.Errorf("decode tickSpacing: %w", err)
	}
	if st.Liquidity, err = asBig(res[5].outs[0]); err != nil {
		return nil, fmt.Errorf("decode liquidity: %w", err)
	}
	if st.FeeGrowthGlobal0X128, err = asBig(res[6].outs[0]); err != nil {
		return nil, fmt.Errorf("decode feeGrowthGlobal0X128: %w", err)
	}
	if st.FeeGrowthGlobal1X128, err = asBig(res[7].outs[0]); err != nil {
		return nil, fmt.Errorf("decode feeGrowthGlobal1X128: %w", err)
	}

	l.log.Debug("pool state",
		zap.String("pool", pool.Hex()),
		zap.String("sqrtPriceX96", st.SqrtPriceX96.String()),
		zap.Int("tick", st.Tick),
		zap.Uint32("fee", st.Fee),
	)
	return st, nil
}

// TickSnapshots reads fee growth outside both boundary ticks in one batch.
func (l *Ledger) TickSnapshots(ctx context.Context, pool common.Address, tickLower, tickUpper int) (lower, upper fees.TickSnapshot, err error) {
	p := &l.abi.pool
	res, err := runBatch(ctx, l.mc, []batchCall{
		{target: pool, abi: p, method: "ticks", args: []interface{}{big.NewInt(int64(tickLower))}},
		{target: pool, abi: p, method: "ticks", args: []interface{}{big.NewInt(int64(tickUpper))}},
	})
	if err != nil {
		return lower, upper, fmt.Errorf("read ticks: %w", err)
	}
	snaps := [2]*fees.TickSnapshot{&lower, &upper}
	for i, r := range res {
		if !r.ok || len(r.outs) < 4 {
			return lower, upper, fmt.Errorf("%w: ticks() failed on %s", ErrPoolNotFound, pool.Hex())
		}
		if snaps[i].FeeGrowthOutside0X128, err = asBig(r.outs[2]); err != nil {
			return lower, upper, fmt.Errorf("decode feeGrowthOutside0X128: %w", err)
		}
		if snaps[i].FeeGrowthOutside1X128, err = asBig(r.outs[3]); err != nil {
			return lower, upper, fmt.Errorf("decode feeGrowthOutside1X128: %w", err)
		}
	}
	return lower, upper, nil
}

// Position reads a position from the NonfungiblePositionManager.
func (l *Ledger) Position(ctx context.Context, tokenID *big.Int) (*PositionInfo, error) {
	if l.cfg.PositionManager == (common.Address{}) {
		return nil, fmt.Errorf("position manager address is not configured")
	}
	outs, err := l.callABI(ctx, l.cfg.PositionManager, &l.abi.npm, "positions", tokenID)
	if err != nil {
		return nil, fmt.Errorf("%w: token %s: %w", ErrPositionNotFound, tokenID, err)
	}
	if len(outs) < 12 {
		return nil, fmt.Errorf("decode positions: %d outputs", len(outs))
	}

	info := &PositionInfo{TokenID: new(big.Int).Set(tokenID)}
	var ok bool
	if info.Token0, ok = outs[2].(common.Address); !ok {
		return nil, fmt.Errorf("decode position token0: unexpected %T", outs[2])
	}
	if info.Token1, ok = outs[3].(common.Address); !ok {
		return nil, fmt.Errorf("decode position token1: unexpected %T", outs[3])
	}
	fee, err := asInt(outs[4])
	if err != nil {
		return nil, fmt.Errorf("decode position fee: %w", err)
	}
	info.Fee = uint32(fee)
	if info.TickLower, err = asInt(outs[5]); err != nil {
		return nil, fmt.Errorf("decode tickLower: %w", err)
	}
	if info.TickUpper, err = asInt(outs[6]); err != nil {
		return nil, fmt.Errorf("decode tickUpper: %w", err)
	}
	bigs := []**big.Int{&info.Liquidity, &info.FeeGrowthInside0LastX128, &info.FeeGrowthInside1LastX128, &info.TokensOwed0, &info.TokensOwed1}
	for i, dst := range bigs {
		if *dst, err = asBig(outs[7+i]); err != nil {
			return nil, fmt.Errorf("decode position field %d: %w", 7+i, err)
		}
	}
	return info, nil
}

// TickSpacing asks the factory for a fee tier's spacing and falls back to the
// static table when the factory is unreachable. A zero answer from the factory
// means the tier is not enabled.
func (l *Ledger) TickSpacing(ctx context.Context, fee uint32) (int, error) {
	outs, err := l.callABI(ctx, l.cfg.Factory, &l.abi.factory, "feeAmountTickSpacing", big.NewInt(int64(fee)))
	if err != nil {
		l.log.Debug("feeAmountTickSpacing failed, using static table", zap.Uint32("fee", fee), zap.Error(err))
		return clmath.TickSpacing(fee)
	}
	spacing, err := asInt(outs[0])
	if err != nil {
		return 0, fmt.Errorf("decode feeAmountTickSpacing: %w", err)
	}
	if spacing <= 0 {
		return 0, fmt.Errorf("%w: %d not enabled on factory", clmath.ErrUnsupportedFeeTier, fee)
	}
	return spacing, nil
}

func (l *Ledger) Decimals(ctx context.Context, token common.Address) (int, error) {
	return GetERC20Decimals(ctx, l.caller, token)
}

func (l *Ledger) callABI(ctx context.Context, to common.Address, a *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := l.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	outs, err := a.Unpack(method, res)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty %s output", method)
		}
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return outs, nil
}

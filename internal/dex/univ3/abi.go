package univ3

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const quoterV2ABI = `[
  {"inputs":[{"components":[
      {"internalType":"address","name":"tokenIn","type":"address"},
      {"internalType":"address","name":"tokenOut","type":"address"},
      {"internalType":"uint256","name":"amountIn","type":"uint256"},
      {"internalType":"uint24","name":"fee","type":"uint24"},
      {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
    "internalType":"struct IQuoterV2.QuoteExactInputSingleParams","name":"params","type":"tuple"}],
   "name":"quoteExactInputSingle",
   "outputs":[
      {"internalType":"uint256","name":"amountOut","type":"uint256"},
      {"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
      {"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
      {"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"components":[
      {"internalType":"address","name":"tokenIn","type":"address"},
      {"internalType":"address","name":"tokenOut","type":"address"},
      {"internalType":"uint256","name":"amount","type":"uint256"},
      {"internalType":"uint24","name":"fee","type":"uint24"},
      {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
    "internalType":"struct IQuoterV2.QuoteExactOutputSingleParams","name":"params","type":"tuple"}],
   "name":"quoteExactOutputSingle",
   "outputs":[
      {"internalType":"uint256","name":"amountIn","type":"uint256"},
      {"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
      {"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
      {"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"},
  {"inputs":[
      {"internalType":"bytes","name":"path","type":"bytes"},
      {"internalType":"uint256","name":"amountIn","type":"uint256"}],
   "name":"quoteExactInput",
   "outputs":[
      {"internalType":"uint256","name":"amountOut","type":"uint256"},
      {"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"},
      {"internalType":"uint32[]","name":"initializedTicksCrossedList","type":"uint32[]"},
      {"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"},
  {"inputs":[
      {"internalType":"bytes","name":"path","type":"bytes"},
      {"internalType":"uint256","name":"amountOut","type":"uint256"}],
   "name":"quoteExactOutput",
   "outputs":[
      {"internalType":"uint256","name":"amountIn","type":"uint256"},
      {"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"},
      {"internalType":"uint32[]","name":"initializedTicksCrossedList","type":"uint32[]"},
      {"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"}
]`

// Минимальный ABI пула: slot0, токены, fee growth и тики
const poolABI = `[
  {"inputs":[],"name":"slot0","outputs":[
     {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
     {"internalType":"int24","name":"tick","type":"int24"},
     {"internalType":"uint16","name":"observationIndex","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
     {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
     {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"fee","outputs":[{"internalType":"uint24","name":"","type":"uint24"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"tickSpacing","outputs":[{"internalType":"int24","name":"","type":"int24"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"feeGrowthGlobal0X128","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"feeGrowthGlobal1X128","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"int24","name":"tick","type":"int24"}],"name":"ticks","outputs":[
     {"internalType":"uint128","name":"liquidityGross","type":"uint128"},
     {"internalType":"int128","name":"liquidityNet","type":"int128"},
     {"internalType":"uint256","name":"feeGrowthOutside0X128","type":"uint256"},
     {"internalType":"uint256","name":"feeGrowthOutside1X128","type":"uint256"},
     {"internalType":"int56","name":"tickCumulativeOutside","type":"int56"},
     {"internalType":"uint160","name":"secondsPerLiquidityOutsideX128","type":"uint160"},
     {"internalType":"uint32","name":"secondsOutside","type":"uint32"},
     {"internalType":"bool","name":"initialized","type":"bool"}],
   "stateMutability":"view","type":"function"}
]`

// минимальный ABI Factory: getPool и feeAmountTickSpacing
const factoryABI = `[
  {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool",
   "outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"feeAmountTickSpacing",
   "outputs":[{"internalType":"int24","name":"","type":"int24"}],
   "stateMutability":"view","type":"function"}
]`

const positionManagerABI = `[
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"positions","outputs":[
     {"internalType":"uint96","name":"nonce","type":"uint96"},
     {"internalType":"address","name":"operator","type":"address"},
     {"internalType":"address","name":"token0","type":"address"},
     {"internalType":"address","name":"token1","type":"address"},
     {"internalType":"uint24","name":"fee","type":"uint24"},
     {"internalType":"int24","name":"tickLower","type":"int24"},
     {"internalType":"int24","name":"tickUpper","type":"int24"},
     {"internalType":"uint128","name":"liquidity","type":"uint128"},
     {"internalType":"uint256","name":"feeGrowthInside0LastX128","type":"uint256"},
     {"internalType":"uint256","name":"feeGrowthInside1LastX128","type":"uint256"},
     {"internalType":"uint128","name":"tokensOwed0","type":"uint128"},
     {"internalType":"uint128","name":"tokensOwed1","type":"uint128"}],
   "stateMutability":"view","type":"function"}
]`

const erc20ABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// Minimal ABI for SwapRouter exact input/output, single and multi-hop
const routerABI = `[
    {"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"},
    {"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"amountInMaximum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactOutputSingleParams","name":"params","type":"tuple"}],"name":"exactOutputSingle","outputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"}],"stateMutability":"payable","type":"function"},
    {"inputs":[{"components":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"}],"internalType":"struct ISwapRouter.ExactInputParams","name":"params","type":"tuple"}],"name":"exactInput","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"},
    {"inputs":[{"components":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"amountInMaximum","type":"uint256"}],"internalType":"struct ISwapRouter.ExactOutputParams","name":"params","type":"tuple"}],"name":"exactOutput","outputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"}],"stateMutability":"payable","type":"function"}
]`

type abis struct {
	quoter, pool, factory, npm, erc20, router abi.ABI
}

var (
	abiOnce   sync.Once
	parsedABI abis
	abiErr    error
)

// loadABIs parses every contract ABI once; the result is read-only.
func loadABIs() (*abis, error) {
	abiOnce.Do(func() {
		for _, x := range []struct {
			name string
			src  string
			dst  *abi.ABI
		}{
			{"quoter v2", quoterV2ABI, &parsedABI.quoter},
			{"pool", poolABI, &parsedABI.pool},
			{"factory", factoryABI, &parsedABI.factory},
			{"position manager", positionManagerABI, &parsedABI.npm},
			{"erc20", erc20ABI, &parsedABI.erc20},
			{"swap router", routerABI, &parsedABI.router},
		} {
			a, err := abi.JSON(strings.NewReader(x.src))
			if err != nil {
				abiErr = fmt.Errorf("parse %s abi: %w", x.name, err)
				return
			}
			*x.dst = a
		}
	})
	if abiErr != nil {
		return nil, abiErr
	}
	return &parsedABI, nil
}

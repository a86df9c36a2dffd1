package clmath

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToTick_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ticks := []int{MinTick, -1, 0, 1, MaxTick}
	for i := 0; i < 500; i++ {
		ticks = append(ticks, rng.Intn(2*MaxTick+1)-MaxTick)
	}
	for _, tick := range ticks {
		p, err := TickToPrice(tick)
		require.NoError(t, err)
		got, err := PriceToTick(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, absInt(got-tick), 1, "tick %d", tick)
	}
}

func TestTickToPrice_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		t1 := rng.Intn(2*MaxTick) - MaxTick
		t2 := t1 + 1 + rng.Intn(10)
		if t2 > MaxTick {
			continue
		}
		p1, err := TickToPrice(t1)
		require.NoError(t, err)
		p2, err := TickToPrice(t2)
		require.NoError(t, err)
		assert.Less(t, p1, p2)
	}
}

func TestPriceToTick_KnownValues(t *testing.T) {
	tick, err := PriceToTick(1)
	require.NoError(t, err)
	assert.Equal(t, 0, tick)

	tick, err = PriceToTick(0.9)
	require.NoError(t, err)
	assert.Equal(t, -1054, tick)

	tick, err = PriceToTick(1.1)
	require.NoError(t, err)
	assert.Equal(t, 953, tick)
}

func TestPriceToTick_Domain(t *testing.T) {
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1), 1e-300, 1e300} {
		_, err := PriceToTick(p)
		assert.ErrorIs(t, err, ErrDomain, "price %v", p)
	}
	_, err := TickToPrice(MaxTick + 1)
	assert.ErrorIs(t, err, ErrDomain)
}

func TestSqrtPriceToPrice(t *testing.T) {
	p, err := SqrtPriceToPrice(Q96, 18, 18)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	// raw price 1 between a 18-decimals token0 and a 6-decimals token1
	p, err = SqrtPriceToPrice(Q96, 18, 6)
	require.NoError(t, err)
	assert.InEpsilon(t, 1e12, p, 1e-12)

	// sqrt price of 2^96 * 2 means raw price 4
	p, err = SqrtPriceToPrice(new(big.Int).Lsh(Q96, 1), 6, 6)
	require.NoError(t, err)
	assert.Equal(t, 4.0, p)

	// tick 1000 round-trips through the fixed-point path
	r, err := SqrtRatioAtTick(1000)
	require.NoError(t, err)
	p, err = SqrtPriceToPrice(r, 0, 0)
	require.NoError(t, err)
	want, _ := TickToPrice(1000)
	assert.InEpsilon(t, want, p, 1e-12)
}

func TestSqrtPriceToPrice_Uninitialized(t *testing.T) {
	_, err := SqrtPriceToPrice(big.NewInt(0), 18, 6)
	assert.ErrorIs(t, err, ErrDomain)
	_, err = SqrtPriceToPrice(nil, 18, 6)
	assert.ErrorIs(t, err, ErrDomain)
	_, err = SqrtPriceToPrice(Q96, -1, 6)
	assert.ErrorIs(t, err, ErrDomain)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailable(t *testing.T) {
	err := Unavailable(VenueUniswapV3, errors.New("execution reverted"))
	assert.ErrorIs(t, err, ErrRouteUnavailable)
	assert.Contains(t, err.Error(), "uniswap_v3")
	assert.Contains(t, err.Error(), "execution reverted")

	err = Unavailable(VenueSushiV2, ErrInsufficientLiquidity)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.ErrorIs(t, err, ErrRouteUnavailable)

	assert.ErrorIs(t, Unavailable(VenueAggregator, nil), ErrRouteUnavailable)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&Venue{ID: VenueUniswapV3, Tier: TierGeneral})
	r.Register(&Venue{ID: VenueSushiV2, Tier: TierCrossVenueFallback})
	r.Register(&Venue{ID: VenueAggregator, Tier: TierCrossVenueFallback})

	assert.Nil(t, r.Get(VenueTaxRouter))
	assert.Len(t, r.Enabled([]VenueID{VenueTaxRouter, VenueUniswapV3}), 1)

	fb := r.ByTier(TierCrossVenueFallback, []VenueID{VenueAggregator, VenueUniswapV3, VenueSushiV2})
	if assert.Len(t, fb, 2) {
		assert.Equal(t, VenueAggregator, fb[0].ID)
		assert.Equal(t, VenueSushiV2, fb[1].ID)
	}
	assert.Equal(t, "general", TierGeneral.String())
}

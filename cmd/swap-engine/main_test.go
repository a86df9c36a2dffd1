package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/swap-engine/internal/config"
	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/types"
)

type stubQuoter struct{}

func (stubQuoter) Quote(context.Context, types.SwapRequest) (*types.Quote, error) {
	return nil, core.ErrInsufficientLiquidity
}

func TestParseTiers(t *testing.T) {
	assert.Equal(t, []uint32{500, 3000}, parseTiers("500, 3000"))
	assert.Equal(t, []uint32{100}, parseTiers("100,abc,777"))
	assert.Empty(t, parseTiers(""))
}

func TestBuildTiers(t *testing.T) {
	cfg, err := config.Parse([]byte("chain:\n  rpc_http: http://localhost:8545\n"))
	require.NoError(t, err)

	reg := core.NewRegistry()
	reg.Register(&core.Venue{ID: core.VenueUniswapV3, Tier: core.TierGeneral, Quoter: stubQuoter{}})
	reg.Register(&core.Venue{ID: core.VenueSushiV2, Tier: core.TierCrossVenueFallback, Quoter: stubQuoter{}})
	// registered under the wrong tier, must not leak into the general chain
	reg.Register(&core.Venue{ID: core.VenueCamelotV2, Tier: core.TierGeneral, Quoter: stubQuoter{}})

	tiers := buildTiers(cfg, reg)
	require.Len(t, tiers, 2)
	assert.Equal(t, core.TierGeneral, tiers[0].Tier)
	assert.Equal(t, core.TierCrossVenueFallback, tiers[1].Tier)
	for _, tr := range tiers {
		assert.NotNil(t, tr.Quoter)
		assert.NotNil(t, tr.Builder)
	}
}

func TestAddrs(t *testing.T) {
	got := addrs([]string{"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", "bogus"})
	require.Len(t, got, 1)
	assert.Equal(t, "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", got[0].Hex())
}

func TestQuoteRequiresFlags(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"quote", "--in", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"})
	assert.Error(t, root.Execute())
}

func TestFeeTiersRejectsBadAddress(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"fee-tiers", "nope", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an address")
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTaxTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("redis:\n  addr: "+mr.Addr()+"\n"), 0o600))

	const (
		usdt = "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"
		weth = "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
	)
	out, err := runCmd(t, "--config", cfgPath, "tax-tokens", "add", usdt, weth)
	require.NoError(t, err)
	assert.Contains(t, out, "marked 2")
	ok, err := mr.SIsMember("token:tax", strings.ToLower(usdt))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = runCmd(t, "--config", cfgPath, "tax-tokens", "remove", weth)
	require.NoError(t, err)

	out, err = runCmd(t, "--config", cfgPath, "tax-tokens", "list")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(usdt).Hex()+"\n", out)
}

func TestTaxTokensValidation(t *testing.T) {
	_, err := runCmd(t, "tax-tokens", "add", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an address")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: info\n"), 0o600))
	_, err = runCmd(t, "--config", cfgPath, "tax-tokens", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")
}

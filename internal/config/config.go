package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/you/swap-engine/internal/dex/core"
)

type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// SET of tax token addresses
	TaxKey string `yaml:"tax_key"`
}

// Window is a slippage tolerance range in percent.
type Window struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

type Config struct {
	Chain struct {
		ChainID uint64 `yaml:"chain_id"`
		RPCHTTP string `yaml:"rpc_http"`
	} `yaml:"chain"`

	DEX struct {
		Factory         string   `yaml:"factory"`
		InitCodeHash    string   `yaml:"init_code_hash"`
		QuoterV2        string   `yaml:"quoter_v2"`
		SwapRouter      string   `yaml:"swap_router"`
		Multicall       string   `yaml:"multicall"`
		PositionManager string   `yaml:"position_manager"`
		FeeTiers        []uint32 `yaml:"fee_tiers"`
		Connectors      []string `yaml:"connectors"`
	} `yaml:"dex"`

	TaxRouter struct {
		Router   string   `yaml:"router"`
		FeeTiers []uint32 `yaml:"fee_tiers"`
	} `yaml:"tax_router"`

	Fallback struct {
		Sushi struct {
			Router string `yaml:"router"`
		} `yaml:"sushi"`
		CamelotV2 struct {
			Router string `yaml:"router"`
		} `yaml:"camelot_v2"`
		AggregatorURL string  `yaml:"aggregator_url"`
		AggregatorKey string  `yaml:"aggregator_key"`
		RateLimitRPS  float64 `yaml:"rate_limit_rps"`
	} `yaml:"fallback"`

	Routing struct {
		TierTimeoutMs int `yaml:"tier_timeout_ms"`
		// venue order inside each tier
		Tax      []core.VenueID `yaml:"tax"`
		General  []core.VenueID `yaml:"general"`
		Fallback []core.VenueID `yaml:"fallback"`
	} `yaml:"routing"`

	Slippage struct {
		Swap      Window `yaml:"swap"`
		Liquidity Window `yaml:"liquidity"`
	} `yaml:"slippage"`

	Tokens struct {
		Tax []string `yaml:"tax"`
	} `yaml:"tokens"`

	Redis Redis `yaml:"redis"`

	API struct {
		Addr string `yaml:"addr"`
	} `yaml:"api"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads a YAML file, expands ${VAR} references from the environment
// (after an optional .env next to the process) and fills defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return nil, err
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Chain.ChainID == 0 {
		c.Chain.ChainID = 42161
	}
	if len(c.DEX.FeeTiers) == 0 {
		c.DEX.FeeTiers = []uint32{100, 500, 3000, 10000}
	}
	if c.Routing.TierTimeoutMs == 0 {
		c.Routing.TierTimeoutMs = 3000
	}
	if c.Routing.Tax == nil {
		c.Routing.Tax = []core.VenueID{core.VenueTaxRouter}
	}
	if c.Routing.General == nil {
		c.Routing.General = []core.VenueID{core.VenueUniswapV3}
	}
	if c.Routing.Fallback == nil {
		c.Routing.Fallback = []core.VenueID{core.VenueSushiV2, core.VenueCamelotV2, core.VenueAggregator}
	}
	if c.Slippage.Swap == (Window{}) {
		c.Slippage.Swap = Window{Min: 0.05, Max: 5, Default: 0.5}
	}
	if c.Slippage.Liquidity == (Window{}) {
		c.Slippage.Liquidity = Window{Min: 0.05, Max: 5, Default: 0.5}
	}
	if c.Redis.TaxKey == "" {
		c.Redis.TaxKey = "token:tax"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	for _, w := range []Window{c.Slippage.Swap, c.Slippage.Liquidity} {
		if w.Min <= 0 || w.Max < w.Min || w.Default < w.Min || w.Default > w.Max {
			return fmt.Errorf("bad slippage window %+v", w)
		}
	}
	if c.Routing.TierTimeoutMs < 0 {
		return errors.New("routing.tier_timeout_ms must not be negative")
	}
	return nil
}

func (c *Config) TierTimeout() time.Duration {
	return time.Duration(c.Routing.TierTimeoutMs) * time.Millisecond
}

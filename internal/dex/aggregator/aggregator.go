package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/types"
)

type Config struct {
	BaseURL string
	APIKey  string
	// requests per second; 0 means unlimited
	RateLimit float64
	Timeout   time.Duration
}

// Client is the cross-venue fallback: an off-chain quote API that also
// serves cross-chain requests.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("aggregator base url is not configured")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("aggregator base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}, nil
}

type routeHop struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Fee      uint32 `json:"fee"`
}

type quoteResponse struct {
	AmountIn  string     `json:"amountIn"`
	AmountOut string     `json:"amountOut"`
	Gas       string     `json:"gas"`
	Route     []routeHop `json:"route"`
	Error     string     `json:"error"`
}

func (c *Client) Quote(ctx context.Context, req types.SwapRequest) (*types.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, core.Unavailable(core.VenueAggregator, err)
	}

	body, status, err := c.get(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.Unavailable(core.VenueAggregator, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil && status == http.StatusOK {
		return nil, core.Unavailable(core.VenueAggregator, fmt.Errorf("decode quote: %w", err))
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return nil, core.Unavailable(core.VenueAggregator, fmt.Errorf("%w: %s", core.ErrInsufficientLiquidity, resp.Error))
	case status != http.StatusOK:
		return nil, core.Unavailable(core.VenueAggregator, fmt.Errorf("HTTP %d: %s", status, resp.Error))
	}

	amountIn, ok1 := new(big.Int).SetString(resp.AmountIn, 10)
	amountOut, ok2 := new(big.Int).SetString(resp.AmountOut, 10)
	if !ok1 || !ok2 {
		return nil, core.Unavailable(core.VenueAggregator, fmt.Errorf("bad amounts %q / %q", resp.AmountIn, resp.AmountOut))
	}
	if amountIn.Sign() <= 0 || amountOut.Sign() <= 0 {
		return nil, core.Unavailable(core.VenueAggregator, core.ErrInsufficientLiquidity)
	}

	q := &types.Quote{
		Venue:     string(core.VenueAggregator),
		Direction: req.Direction,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}
	if gas, ok := new(big.Int).SetString(resp.Gas, 10); ok {
		q.GasEstimate = gas
	}
	if len(resp.Route) > 0 && !req.CrossChain() {
		p := make(swappath.Path, len(resp.Route))
		for i, h := range resp.Route {
			if !common.IsHexAddress(h.TokenIn) || !common.IsHexAddress(h.TokenOut) {
				return nil, core.Unavailable(core.VenueAggregator, fmt.Errorf("bad route hop %d", i))
			}
			p[i] = swappath.Hop{TokenIn: common.HexToAddress(h.TokenIn), TokenOut: common.HexToAddress(h.TokenOut), Fee: h.Fee}
		}
		if err := p.Validate(); err != nil {
			// a broken route from the API is the venue's failure, not the caller's
			return nil, core.Unavailable(core.VenueAggregator, err)
		}
		q.Path = p
		q.Hops = make([]types.HopPrice, len(p))
	}
	c.log.Debug("aggregator quote",
		zap.String("amountIn", amountIn.String()),
		zap.String("amountOut", amountOut.String()),
		zap.Int("hops", len(q.Path)),
	)
	return q, nil
}

func (c *Client) get(ctx context.Context, req types.SwapRequest) ([]byte, int, error) {
	v := url.Values{}
	v.Set("tokenIn", req.TokenIn.Hex())
	v.Set("tokenOut", req.TokenOut.Hex())
	v.Set("amount", req.Amount.String())
	v.Set("side", string(req.Direction))
	if req.SrcChainID != 0 {
		v.Set("srcChainId", strconv.FormatUint(req.SrcChainID, 10))
	}
	if req.DstChainID != 0 {
		v.Set("dstChainId", strconv.FormatUint(req.DstChainID, 10))
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/quote?" + v.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "swap-engine/1.0")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

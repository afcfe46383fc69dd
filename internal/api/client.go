// Package api is the client for the off-chain aggregation service: pool TVL
// and cross-pair route candidates.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapScope/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client talks to the aggregation REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

type tvlResponse struct {
	Pool string `json:"pool"`
	TVL  string `json:"tvl"`
}

// PoolTVL fetches the pool's total value locked in USD.
func (c *Client) PoolTVL(ctx context.Context, pool string) (decimal.Decimal, error) {
	var resp tvlResponse
	endpoint := fmt.Sprintf("%s/pools/%s/tvl", c.baseURL, url.PathEscape(pool))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return decimal.Zero, err
	}
	tvl, err := decimal.NewFromString(resp.TVL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse tvl %q: %w", resp.TVL, err)
	}
	return tvl, nil
}

// CrossPairsRequest asks for candidate pools connecting two tokens.
type CrossPairsRequest struct {
	FromRoot  string `json:"from_root"`
	ToRoot    string `json:"to_root"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"` // "spend" or "receive"
	MinTVL    string `json:"min_tvl"`
	MaxHops   int    `json:"max_hops"`
}

type crossPairsResponse struct {
	Pools []crossPairPool `json:"pools"`
}

type crossPairPool struct {
	Address        string `json:"address"`
	LeftRoot       string `json:"left_root"`
	RightRoot      string `json:"right_root"`
	LeftReserve    string `json:"left_reserve"`
	RightReserve   string `json:"right_reserve"`
	FeeNumerator   int64  `json:"fee_numerator"`
	FeeDenominator int64  `json:"fee_denominator"`
}

// CrossPairs fetches the bounded candidate pool set for route discovery.
// Pools with unparsable reserves are dropped, not fatal.
func (c *Client) CrossPairs(ctx context.Context, req CrossPairsRequest) ([]model.Pool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal cross pairs request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pairs/cross_pairs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build cross pairs request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp crossPairsResponse
	if err := c.doJSON(httpReq, &resp); err != nil {
		return nil, err
	}

	pools := make([]model.Pool, 0, len(resp.Pools))
	for _, p := range resp.Pools {
		left, err := decimal.NewFromString(p.LeftReserve)
		if err != nil {
			c.logger.Warn("skip pool with bad left reserve", zap.String("pool", p.Address), zap.Error(err))
			continue
		}
		right, err := decimal.NewFromString(p.RightReserve)
		if err != nil {
			c.logger.Warn("skip pool with bad right reserve", zap.String("pool", p.Address), zap.Error(err))
			continue
		}
		pools = append(pools, model.Pool{
			Address:        p.Address,
			LeftRoot:       p.LeftRoot,
			RightRoot:      p.RightRoot,
			LeftReserve:    left,
			RightReserve:   right,
			FeeNumerator:   p.FeeNumerator,
			FeeDenominator: p.FeeDenominator,
		})
	}
	return pools, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const priceTTL = 5 * time.Minute

// Converter looks up fiat prices by token symbol. It is a best-effort
// overlay: callers must tolerate empty results.
type Converter interface {
	Prices(ctx context.Context, symbols []string) map[string]float64
}

// Client fetches USD prices over REST with a short-lived cache.
type Client struct {
	http  *resty.Client
	cache *cache.Cache
	log   *zap.Logger
}

var _ Converter = (*Client)(nil)

// NewClient creates a pricing client.
func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		http:  resty.New().SetBaseURL(baseURL).SetHeader("Accept", "application/json"),
		cache: cache.New(priceTTL, 2*priceTTL),
		log:   log,
	}
}

// Prices returns USD prices for the requested symbols. Failures are
// logged and produce a partial (possibly empty) map; fee computation
// must never block on fiat data.
func (c *Client) Prices(ctx context.Context, symbols []string) map[string]float64 {
	prices := make(map[string]float64)
	var missing []string

	for _, symbol := range symbols {
		if x, found := c.cache.Get(symbol); found {
			if price, ok := x.(float64); ok {
				prices[symbol] = price
				continue
			}
		}
		missing = append(missing, symbol)
	}
	if len(missing) == 0 {
		return prices
	}

	var out map[string]float64
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(missing, ",")).
		SetResult(&out).
		Get("/v1/prices")
	if err != nil || resp.IsError() {
		c.log.Debug("fiat price lookup failed", zap.Strings("symbols", missing), zap.Error(err))
		return prices
	}

	for symbol, price := range out {
		prices[symbol] = price
		c.cache.Set(symbol, price, priceTTL)
	}
	return prices
}

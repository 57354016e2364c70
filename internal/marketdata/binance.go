package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// BinanceURL is the public spot API endpoint.
const BinanceURL = "https://api.binance.com"

// BinanceClient reads last-trade prices for <TICKER>USDT pairs.
type BinanceClient struct {
	http httpClient
}

// NewBinanceClient creates a client.
func NewBinanceClient(opts ...Option) *BinanceClient {
	c := &BinanceClient{http: newHTTPClient("binance", BinanceURL)}
	for _, opt := range opts {
		opt(&c.http)
	}
	return c
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Price returns the last price of ticker in USDT.
func (c *BinanceClient) Price(ctx context.Context, ticker string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(ticker)+"USDT")

	var tp tickerPrice
	if err := c.http.getJSON(ctx, "/api/v3/ticker/price?"+q.Encode(), &tp); err != nil {
		return 0, fmt.Errorf("binance price %s: %w", ticker, err)
	}

	p, err := decimal.NewFromString(tp.Price)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: parse %q: %w", ticker, tp.Price, err)
	}
	if !p.IsPositive() {
		return 0, fmt.Errorf("binance price %s: %w", ticker, ErrUnknownTicker)
	}
	return p.InexactFloat64(), nil
}

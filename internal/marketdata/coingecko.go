package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"signal-trader/internal/decision"
)

// CoinGeckoURL is the public API endpoint.
const CoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoClient resolves market capitalization by ticker symbol.
// Results are cached per ticker for the TTL.
type CoinGeckoClient struct {
	http httpClient
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     float64
	expiresAt time.Time
}

// Compile-time interface check.
var _ decision.MarketCapLookup = (*CoinGeckoClient)(nil)

// NewCoinGeckoClient creates a client. ttl <= 0 uses DefaultCacheTTL.
func NewCoinGeckoClient(ttl time.Duration, opts ...Option) *CoinGeckoClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CoinGeckoClient{
		http:  newHTTPClient("coingecko", CoinGeckoURL),
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(&c.http)
	}
	return c
}

type coinMarket struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	MarketCap float64 `json:"market_cap"`
}

// MarketCap returns the USD market capitalization of ticker. When several
// coins share a symbol the largest is used.
func (c *CoinGeckoClient) MarketCap(ctx context.Context, ticker string) (float64, error) {
	key := strings.ToLower(ticker)

	c.mu.Lock()
	if e, ok := c.cache[key]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("symbols", key)

	var markets []coinMarket
	if err := c.http.getJSON(ctx, "/coins/markets?"+q.Encode(), &markets); err != nil {
		return 0, fmt.Errorf("coingecko market cap %s: %w", ticker, err)
	}

	var best float64
	found := false
	for _, m := range markets {
		if strings.EqualFold(m.Symbol, key) && m.MarketCap >= best {
			best, found = m.MarketCap, true
		}
	}
	if !found {
		return 0, fmt.Errorf("coingecko market cap %s: %w", ticker, ErrUnknownTicker)
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{value: best, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return best, nil
}

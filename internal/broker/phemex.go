// Package broker places orders for executed signals.
package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
	"signal-trader/internal/observability"
)

// Phemex endpoints.
const (
	PhemexMainnetURL = "https://api.phemex.com"
	PhemexTestnetURL = "https://testnet-api.phemex.com"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// requestExpiry is how long a signed request stays valid.
	requestExpiry = 60 * time.Second
)

// priceScale converts prices to Phemex scaled integers (priceEp).
var priceScale = decimal.New(1, 4)

// PhemexClient places contract orders on Phemex.
type PhemexClient struct {
	apiKey      string
	apiSecret   []byte
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	now         func() time.Time
	metrics     *observability.Metrics
}

// ClientOption configures PhemexClient.
type ClientOption func(*PhemexClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *PhemexClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *PhemexClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *PhemexClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *PhemexClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *PhemexClient) {
		c.client = client
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *PhemexClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClock sets the clock used for request expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *PhemexClient) {
		c.now = now
	}
}

// WithMetrics records request latency.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *PhemexClient) {
		c.metrics = m
	}
}

// NewPhemexClient creates a client. The default endpoint is the testnet.
func NewPhemexClient(apiKey, apiSecret string, opts ...ClientOption) *PhemexClient {
	c := &PhemexClient{
		apiKey:      apiKey,
		apiSecret:   []byte(apiSecret),
		baseURL:     PhemexTestnetURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ lifecycle.Executor = (*PhemexClient)(nil)

// Execute sets leverage and places a limit order with attached stop-loss
// and take-profit. Rejections are returned as *domain.ExecutionError.
func (c *PhemexClient) Execute(ctx context.Context, o domain.Order) (*domain.Fill, error) {
	if err := ValidateOrder(o); err != nil {
		return nil, &domain.ExecutionError{Ticker: o.Ticker, Err: err}
	}

	symbol := Symbol(o.Ticker)

	lev := url.Values{}
	lev.Set("symbol", symbol)
	lev.Set("leverage", strconv.FormatFloat(o.Leverage, 'f', -1, 64))
	if err := c.do(ctx, http.MethodPut, "/positions/leverage", lev, nil, nil); err != nil {
		return nil, &domain.ExecutionError{Ticker: o.Ticker, Err: fmt.Errorf("set leverage: %w", err)}
	}

	req := orderRequest{
		Symbol:       symbol,
		ClOrdID:      o.ClientOrderID,
		Side:         side(o.Direction),
		OrderQty:     OrderQty(o.Amount, o.Leverage),
		OrdType:      "Limit",
		PriceEp:      ScalePrice(o.EntryPrice),
		StopLossEp:   ScalePrice(o.StopPrice),
		TakeProfitEp: ScalePrice(o.TargetPrice),
		TimeInForce:  "GoodTillCancel",
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	var placed orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", nil, body, &placed); err != nil {
		return nil, &domain.ExecutionError{Ticker: o.Ticker, Err: fmt.Errorf("place order: %w", err)}
	}

	fill := &domain.Fill{OrderIDs: []string{placed.OrderID}}
	if placed.PriceEp > 0 {
		fill.FillPrice = UnscalePrice(placed.PriceEp)
	}
	return fill, nil
}

// ValidateOrder checks prices are positive and ordered: SL < entry < TP for
// longs, SL > entry > TP for shorts.
func ValidateOrder(o domain.Order) error {
	if o.Ticker == "" {
		return errors.New("missing ticker")
	}
	if !o.Direction.IsValid() {
		return fmt.Errorf("invalid direction %q", o.Direction)
	}
	if o.EntryPrice <= 0 || o.StopPrice <= 0 || o.TargetPrice <= 0 {
		return fmt.Errorf("prices must be positive: entry=%v stop=%v target=%v", o.EntryPrice, o.StopPrice, o.TargetPrice)
	}
	if o.Amount <= 0 || o.Leverage < 1 {
		return fmt.Errorf("invalid size: amount=%v leverage=%v", o.Amount, o.Leverage)
	}
	if o.Direction.IsLong() {
		if o.StopPrice >= o.EntryPrice {
			return fmt.Errorf("stop loss %v must be below entry %v for long", o.StopPrice, o.EntryPrice)
		}
		if o.TargetPrice <= o.EntryPrice {
			return fmt.Errorf("take profit %v must be above entry %v for long", o.TargetPrice, o.EntryPrice)
		}
		return nil
	}
	if o.StopPrice <= o.EntryPrice {
		return fmt.Errorf("stop loss %v must be above entry %v for short", o.StopPrice, o.EntryPrice)
	}
	if o.TargetPrice >= o.EntryPrice {
		return fmt.Errorf("take profit %v must be below entry %v for short", o.TargetPrice, o.EntryPrice)
	}
	return nil
}

// Symbol maps a ticker to the Phemex inverse contract, e.g. BTC -> BTCUSD.
func Symbol(ticker string) string {
	return strings.ToUpper(ticker) + "USD"
}

// ScalePrice converts a price to priceEp, truncating below 1e-4.
func ScalePrice(p float64) int64 {
	return decimal.NewFromFloat(p).Mul(priceScale).IntPart()
}

// UnscalePrice converts priceEp back to a price.
func UnscalePrice(ep int64) float64 {
	return decimal.NewFromInt(ep).Div(priceScale).InexactFloat64()
}

// OrderQty is the contract count for margin at leverage; one contract is 1 USD.
func OrderQty(amount, leverage float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(leverage)).IntPart()
}

// Sign returns the request signature: HMAC-SHA256 over
// path + query + expiry + body, hex encoded.
func Sign(secret []byte, path, query string, expiry int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(path))
	mac.Write([]byte(query))
	mac.Write([]byte(strconv.FormatInt(expiry, 10)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// apiError is a business-level rejection. It is not retried.
type apiError struct {
	Code int
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("phemex error %d: %s", e.Code, e.Msg)
}

// do performs a signed request with retries and exponential backoff.
// Transport failures, 429 and 5xx are retried; API errors are not.
func (c *PhemexClient) do(ctx context.Context, method, path string, query url.Values, body []byte, result interface{}) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordExternalCall("phemex", path, time.Since(start).Seconds())
	}()

	rawQuery := query.Encode()
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		target := c.baseURL + path
		if rawQuery != "" {
			target += "?" + rawQuery
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		expiry := c.now().Add(requestExpiry).Unix()
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-phemex-access-token", c.apiKey)
		req.Header.Set("x-phemex-request-expiry", strconv.FormatInt(expiry, 10))
		req.Header.Set("x-phemex-request-signature", Sign(c.apiSecret, path, rawQuery, expiry, body))

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var envelope apiResponse
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}
		if envelope.Code != 0 {
			return &apiError{Code: envelope.Code, Msg: envelope.Msg}
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if result != nil && len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func side(d domain.Direction) string {
	if d.IsLong() {
		return "Buy"
	}
	return "Sell"
}

type orderRequest struct {
	Symbol       string `json:"symbol"`
	ClOrdID      string `json:"clOrdID"`
	Side         string `json:"side"`
	OrderQty     int64  `json:"orderQty"`
	OrdType      string `json:"ordType"`
	PriceEp      int64  `json:"priceEp"`
	StopLossEp   int64  `json:"stopLossEp,omitempty"`
	TakeProfitEp int64  `json:"takeProfitEp,omitempty"`
	TimeInForce  string `json:"timeInForce"`
	ReduceOnly   bool   `json:"reduceOnly"`
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type orderResponse struct {
	OrderID string `json:"orderID"`
	ClOrdID string `json:"clOrdID"`
	PriceEp int64  `json:"priceEp"`
}

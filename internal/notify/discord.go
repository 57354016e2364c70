// Package notify posts trade events to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/lifecycle"
)

// Embed colors.
const (
	colorOpen   = 0x3498db
	colorProfit = 0x2ecc71
	colorLoss   = 0xe74c3c
)

// DiscordNotifier sends trade open and close embeds.
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
	now        func() time.Time
}

// Option configures DiscordNotifier.
type Option func(*DiscordNotifier)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *DiscordNotifier) {
		n.client = client
	}
}

// WithUsername overrides the webhook display name.
func WithUsername(name string) Option {
	return func(n *DiscordNotifier) {
		n.username = name
	}
}

// NewDiscordNotifier creates a notifier for webhookURL.
func NewDiscordNotifier(webhookURL string, opts ...Option) *DiscordNotifier {
	n := &DiscordNotifier{
		webhookURL: webhookURL,
		username:   "signal-trader",
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Compile-time interface check.
var _ lifecycle.Notifier = (*DiscordNotifier)(nil)

// TradeOpened posts an embed for a new trade.
func (n *DiscordNotifier) TradeOpened(ctx context.Context, t *domain.Trade) error {
	e := embed{
		Title: fmt.Sprintf("Opened %s %s", strings.ToUpper(string(t.Direction)), t.Ticker),
		Color: colorOpen,
		Fields: []field{
			{Name: "Entry", Value: price(t.EntryPrice), Inline: true},
			{Name: "Stop", Value: price(t.StopPrice), Inline: true},
			{Name: "Target", Value: price(t.TargetPrice), Inline: true},
			{Name: "Margin", Value: fmt.Sprintf("%.2f", t.Amount), Inline: true},
			{Name: "Leverage", Value: fmt.Sprintf("%gx", t.Leverage), Inline: true},
		},
		Footer:    &footer{Text: t.TradeID},
		Timestamp: time.UnixMilli(t.OpenedAt).UTC().Format(time.RFC3339),
	}
	return n.post(ctx, e)
}

// TradeClosed posts an embed with realized P&L.
func (n *DiscordNotifier) TradeClosed(ctx context.Context, t *domain.Trade) error {
	if t.CloseReason == nil || t.ClosePrice == nil || t.PnLAmount == nil || t.PnLPercent == nil {
		return fmt.Errorf("trade %s is not closed", t.TradeID)
	}

	color := colorProfit
	if *t.PnLAmount < 0 {
		color = colorLoss
	}
	ts := n.now()
	if t.ClosedAt != nil {
		ts = time.UnixMilli(*t.ClosedAt)
	}

	e := embed{
		Title: fmt.Sprintf("Closed %s %s (%s)", strings.ToUpper(string(t.Direction)), t.Ticker, *t.CloseReason),
		Color: color,
		Fields: []field{
			{Name: "Entry", Value: price(t.EntryPrice), Inline: true},
			{Name: "Close", Value: price(*t.ClosePrice), Inline: true},
			{Name: "P&L", Value: fmt.Sprintf("%+.2f (%+.2f%%)", *t.PnLAmount, *t.PnLPercent), Inline: true},
		},
		Footer:    &footer{Text: t.TradeID},
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
	return n.post(ctx, e)
}

func (n *DiscordNotifier) post(ctx context.Context, e embed) error {
	body, err := json.Marshal(webhookPayload{Username: n.username, Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

func price(p float64) string {
	return fmt.Sprintf("%g", p)
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title     string  `json:"title"`
	Color     int     `json:"color"`
	Fields    []field `json:"fields,omitempty"`
	Footer    *footer `json:"footer,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type footer struct {
	Text string `json:"text"`
}

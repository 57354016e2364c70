package detector

import (
	"context"
	"image"
	"time"

	"signal-trader/internal/domain"
	"signal-trader/internal/locator"
)

// Feed exposes the visible message window of one channel.
// Failures are transient and retried next cycle.
type Feed interface {
	CaptureVisibleMessages(ctx context.Context) ([]domain.RawMessage, error)
	ScrollToBottom(ctx context.Context) error
	ScrollUp(ctx context.Context, amount int) error
}

// FrameSource captures the rendered feed as an image.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// Clicker clicks at a point in frame coordinates.
type Clicker interface {
	ClickAt(ctx context.Context, x, y int) error
}

// Locator finds the reveal control in a frame. *locator.Locator implements it.
type Locator interface {
	Locate(ctx context.Context, frame image.Image, width, height locator.Range, opts locator.Options) (locator.Result, bool, error)
}

// Detection is an ingested message with its parsed signal.
type Detection struct {
	Message  domain.RawMessage
	Parsed   domain.ParsedSignal
	Trader   domain.Trader
	Score    float64 // trader similarity
	Revealed bool    // text came from a reveal action
}

// Sink receives ingested detections. Returning domain.ErrDuplicateSignal
// marks the message seen; any other error leaves it for the next cycle.
type Sink interface {
	Ingest(ctx context.Context, d Detection) error
}

// Outcome is the terminal or pending result of evaluating one message.
type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeGatedFail Outcome = "gated_fail" // locked message left pending
	OutcomeRetry     Outcome = "retry"      // sink failed, re-evaluated next cycle
)

// Config holds detector tuning.
type Config struct {
	ChannelID string

	ScanInterval   time.Duration // Default: 2s
	ScrollInterval time.Duration // Default: 30s
	ScrollAmount   int           // Default: 10
	SettleDelay    time.Duration // Default: 1s
	CallTimeout    time.Duration // Default: 10s, applied to every external call

	HiddenPhrases   []string // lower-case phrases marking hidden content
	RevealedMarkers []string // lower-case fragments proving content is visible

	ControlWidth  locator.Range
	ControlHeight locator.Range
	LocateOptions locator.Options

	// MaxLockedAttempts discards a locked message after this many failed
	// reveal attempts. Zero retries forever.
	MaxLockedAttempts int
}

// DefaultHiddenPhrases are the phrases shown in place of gated content.
var DefaultHiddenPhrases = []string{
	"only you can see this",
	"unlock content",
}

// DefaultRevealedMarkers indicate a message was already revealed.
var DefaultRevealedMarkers = []string{
	"entry:",
	"sl:",
	"sl-",
	"tp:",
	"tps:",
	"valid limit order",
	"order filled",
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		ScanInterval:    2 * time.Second,
		ScrollInterval:  30 * time.Second,
		ScrollAmount:    10,
		SettleDelay:     1 * time.Second,
		CallTimeout:     10 * time.Second,
		HiddenPhrases:   DefaultHiddenPhrases,
		RevealedMarkers: DefaultRevealedMarkers,
		ControlWidth:    locator.DefaultWidth,
		ControlHeight:   locator.DefaultHeight,
		LocateOptions:   locator.Options{Emergency: true},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ScanInterval <= 0 {
		c.ScanInterval = def.ScanInterval
	}
	if c.ScrollInterval <= 0 {
		c.ScrollInterval = def.ScrollInterval
	}
	if c.ScrollAmount <= 0 {
		c.ScrollAmount = def.ScrollAmount
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = def.SettleDelay
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.HiddenPhrases == nil {
		c.HiddenPhrases = def.HiddenPhrases
	}
	if c.RevealedMarkers == nil {
		c.RevealedMarkers = def.RevealedMarkers
	}
	if c.ControlWidth == (locator.Range{}) {
		c.ControlWidth = def.ControlWidth
	}
	if c.ControlHeight == (locator.Range{}) {
		c.ControlHeight = def.ControlHeight
	}
	return c
}

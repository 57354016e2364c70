//go:build desktop

package desktop

import (
	"context"
	"time"

	"signal-trader/internal/detector"
	"signal-trader/internal/domain"
	"signal-trader/internal/feed"
)

// Feed reads the visible chat messages off the screen.
type Feed struct {
	screen    *Screen
	ocr       *OCR
	channelID string
	now       func() time.Time
}

// Compile-time interface check.
var _ detector.Feed = (*Feed)(nil)

// NewFeed creates a screen feed for channelID.
func NewFeed(screen *Screen, ocr *OCR, channelID string) *Feed {
	return &Feed{screen: screen, ocr: ocr, channelID: channelID, now: time.Now}
}

// CaptureVisibleMessages captures the region, recognizes text lines and
// groups them into messages.
func (f *Feed) CaptureVisibleMessages(ctx context.Context) ([]domain.RawMessage, error) {
	frame, err := f.screen.CaptureFrame(ctx)
	if err != nil {
		return nil, err
	}
	boxes := f.ocr.RecognizeBoxes(ctx, frame, frame.Bounds())
	lines := make([]feed.Line, len(boxes))
	for i, b := range boxes {
		lines[i] = feed.Line{Text: b.Text, Bounds: b.Bounds}
	}
	return feed.SplitBlocks(f.channelID, lines, f.now().UnixMilli()), nil
}

// ScrollToBottom delegates to the screen.
func (f *Feed) ScrollToBottom(ctx context.Context) error {
	return f.screen.ScrollToBottom(ctx)
}

// ScrollUp delegates to the screen.
func (f *Feed) ScrollUp(ctx context.Context, amount int) error {
	return f.screen.ScrollUp(ctx, amount)
}

//go:build desktop

// Package desktop drives a chat window on the local display: screen capture,
// mouse input and OCR. It needs cgo, OpenCV and Tesseract.
package desktop

import (
	"context"
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"signal-trader/internal/detector"
)

// Screen captures and clicks inside a fixed region of one display.
// Frame coordinates are relative to the region's top-left corner.
type Screen struct {
	region     image.Rectangle
	scrollStep int
}

// Compile-time interface checks.
var (
	_ detector.FrameSource = (*Screen)(nil)
	_ detector.Clicker     = (*Screen)(nil)
)

// NewScreen watches region on display. An empty region selects the whole
// display.
func NewScreen(display int, region image.Rectangle) (*Screen, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range (%d active)", display, n)
	}
	bounds := screenshot.GetDisplayBounds(display)
	if region.Empty() {
		region = bounds
	}
	if !region.In(bounds) {
		return nil, fmt.Errorf("region %v outside display bounds %v", region, bounds)
	}
	return &Screen{region: region, scrollStep: 5}, nil
}

// CaptureFrame grabs the region.
func (s *Screen) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(s.region)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}

// ClickAt moves the pointer to (x, y) in frame coordinates and left-clicks.
func (s *Screen) ClickAt(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := image.Pt(s.region.Min.X+x, s.region.Min.Y+y)
	if !p.In(s.region) {
		return fmt.Errorf("click %v outside region %v", p, s.region)
	}
	robotgo.MoveMouse(p.X, p.Y)
	robotgo.MilliSleep(50)
	robotgo.MouseClick("left", false)
	return nil
}

// ScrollUp scrolls the feed up by amount wheel steps.
func (s *Screen) ScrollUp(ctx context.Context, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hover()
	robotgo.ScrollDir(amount, "up")
	return nil
}

// ScrollToBottom scrolls down until the newest message is in view.
func (s *Screen) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hover()
	robotgo.ScrollDir(s.scrollStep*20, "down")
	robotgo.MilliSleep(100)
	return nil
}

// hover puts the pointer over the feed so wheel events reach it.
func (s *Screen) hover() {
	c := s.region.Min.Add(s.region.Size().Div(2))
	robotgo.MoveMouse(c.X, c.Y)
}

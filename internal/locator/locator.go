// Package locator finds the reveal control on a captured frame.
//
// Three strategies run in order:
//  1. color: accent-blue regions whose bounding box fits the expected size
//  2. text: OCR confirmation of color candidates, or a full-frame text-box pass
//  3. emergency: the color pass again with relaxed size tolerances
package locator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"signal-trader/internal/fuzzy"
)

// ErrInvalidFrame is returned for a nil or zero-sized frame.
var ErrInvalidFrame = errors.New("invalid frame")

// ErrInvalidRange is returned when an expected size range is malformed.
var ErrInvalidRange = errors.New("invalid size range")

// Range is an inclusive pixel range.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Mid returns the midpoint of the range.
func (r Range) Mid() float64 {
	return float64(r.Min+r.Max) / 2
}

// Widen divides Min and multiplies Max by factor.
func (r Range) Widen(factor float64) Range {
	if factor <= 1 {
		return r
	}
	return Range{
		Min: int(math.Floor(float64(r.Min) / factor)),
		Max: int(math.Ceil(float64(r.Max) * factor)),
	}
}

func (r Range) valid() bool {
	return r.Min >= 1 && r.Max >= r.Min
}

// Strategy names the pass that produced a result.
type Strategy string

const (
	StrategyColor     Strategy = "color"
	StrategyConfirmed Strategy = "confirmed"
	StrategyText      Strategy = "text"
	StrategyEmergency Strategy = "emergency"
)

// TextRecognizer reads text inside a frame region.
// Implementations return "" on failure and never panic.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, frame image.Image, region image.Rectangle) string
}

// TextBox is one recognized line of text with its bounds.
type TextBox struct {
	Text   string
	Bounds image.Rectangle
}

// BoxRecognizer is implemented by recognizers that can report text geometry.
// The full-frame text fallback requires it.
type BoxRecognizer interface {
	RecognizeBoxes(ctx context.Context, frame image.Image, region image.Rectangle) []TextBox
}

// Config holds locator tuning.
type Config struct {
	// Accent-blue HSV band. Hue in degrees, saturation and value in [0,1].
	HueMin float64
	HueMax float64
	SatMin float64
	ValMin float64

	// Label is the control caption used for OCR matching.
	Label          string
	LabelThreshold float64

	// EmergencyMultiplier widens size tolerances for the emergency pass.
	EmergencyMultiplier float64
}

// DefaultConfig returns the band for the platform's accent blue
// (OpenCV H 100-140, S >= 150, V >= 100).
func DefaultConfig() Config {
	return Config{
		HueMin:              200,
		HueMax:              280,
		SatMin:              150.0 / 255.0,
		ValMin:              100.0 / 255.0,
		Label:               "Unlock Content",
		LabelThreshold:      0.8,
		EmergencyMultiplier: 1.5,
	}
}

// DefaultWidth and DefaultHeight are the reveal control's expected size.
var (
	DefaultWidth  = Range{Min: 120, Max: 140}
	DefaultHeight = Range{Min: 30, Max: 35}
)

// Options select optional strategies for one call.
type Options struct {
	// Confirm requires OCR agreement with Label before accepting a color hit.
	Confirm bool
	// Emergency enables the relaxed-tolerance pass.
	Emergency bool
}

// Result is a located control.
type Result struct {
	Rect     image.Rectangle
	Strategy Strategy
}

// Center returns the click point of the control.
func (r Result) Center() image.Point {
	return image.Pt((r.Rect.Min.X+r.Rect.Max.X)/2, (r.Rect.Min.Y+r.Rect.Max.Y)/2)
}

// Locator finds reveal controls. It holds no per-call state and is safe for
// concurrent use if its TextRecognizer is.
type Locator struct {
	cfg Config
	ocr TextRecognizer
}

// New creates a Locator. ocr may be nil, which disables the text strategies.
func New(cfg Config, ocr TextRecognizer) *Locator {
	if cfg.EmergencyMultiplier <= 0 {
		cfg.EmergencyMultiplier = 1.5
	}
	if cfg.LabelThreshold <= 0 {
		cfg.LabelThreshold = 0.8
	}
	return &Locator{cfg: cfg, ocr: ocr}
}

// Locate searches frame for a control whose size fits width x height.
// Returns ok=false without error when nothing is found. Returns an error only
// for malformed input or a cancelled context.
func (l *Locator) Locate(ctx context.Context, frame image.Image, width, height Range, opts Options) (Result, bool, error) {
	if frame == nil {
		return Result{}, false, ErrInvalidFrame
	}
	bounds := frame.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return Result{}, false, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, bounds.Dx(), bounds.Dy())
	}
	if !width.valid() || !height.valid() {
		return Result{}, false, fmt.Errorf("%w: width %v height %v", ErrInvalidRange, width, height)
	}

	regions := colorRegions(frame, l.cfg)
	candidates := rankCandidates(regions, width, height)

	// Primary
	if len(candidates) > 0 && (!opts.Confirm || l.ocr == nil) {
		return Result{Rect: candidates[0], Strategy: StrategyColor}, true, nil
	}

	// Secondary
	if l.ocr != nil {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}
		for _, c := range candidates {
			if fuzzy.Matches(l.ocr.RecognizeText(ctx, frame, c), l.cfg.Label, l.cfg.LabelThreshold) {
				return Result{Rect: c, Strategy: StrategyConfirmed}, true, nil
			}
		}
		if rect, ok := l.locateByText(ctx, frame, bounds); ok {
			return Result{Rect: rect, Strategy: StrategyText}, true, nil
		}
	}

	// Tertiary
	if opts.Emergency {
		relaxed := rankCandidates(regions, width.Widen(l.cfg.EmergencyMultiplier), height.Widen(l.cfg.EmergencyMultiplier))
		if len(relaxed) > 0 {
			return Result{Rect: relaxed[0], Strategy: StrategyEmergency}, true, nil
		}
	}

	return Result{}, false, nil
}

// locateByText runs a full-frame OCR pass and returns the top-most, left-most
// box whose text matches the label.
func (l *Locator) locateByText(ctx context.Context, frame image.Image, bounds image.Rectangle) (image.Rectangle, bool) {
	br, ok := l.ocr.(BoxRecognizer)
	if !ok {
		return image.Rectangle{}, false
	}

	var hits []image.Rectangle
	for _, box := range br.RecognizeBoxes(ctx, frame, bounds) {
		if box.Bounds.Empty() {
			continue
		}
		if fuzzy.Matches(box.Text, l.cfg.Label, l.cfg.LabelThreshold) {
			hits = append(hits, box.Bounds.Intersect(bounds))
		}
	}
	if len(hits) == 0 {
		return image.Rectangle{}, false
	}

	sort.Slice(hits, func(i, j int) bool {
		return topLeftLess(hits[i], hits[j])
	})
	return hits[0], true
}

// rankCandidates keeps regions that fit the size ranges and orders them by
// aspect-ratio closeness, then larger area, then top-most, then left-most.
func rankCandidates(regions []image.Rectangle, width, height Range) []image.Rectangle {
	expected := width.Mid() / height.Mid()

	var out []image.Rectangle
	for _, r := range regions {
		if width.Contains(r.Dx()) && height.Contains(r.Dy()) {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		da := math.Abs(float64(a.Dx())/float64(a.Dy()) - expected)
		db := math.Abs(float64(b.Dx())/float64(b.Dy()) - expected)
		if da != db {
			return da < db
		}
		if areaA, areaB := a.Dx()*a.Dy(), b.Dx()*b.Dy(); areaA != areaB {
			return areaA > areaB
		}
		return topLeftLess(a, b)
	})
	return out
}

func topLeftLess(a, b image.Rectangle) bool {
	if a.Min.Y != b.Min.Y {
		return a.Min.Y < b.Min.Y
	}
	return a.Min.X < b.Min.X
}

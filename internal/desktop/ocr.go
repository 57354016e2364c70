//go:build desktop

package desktop

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"signal-trader/internal/locator"
)

// OCR recognizes text with Tesseract after OpenCV binarization.
// One Tesseract client is shared; calls are serialized.
type OCR struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// Compile-time interface checks.
var (
	_ locator.TextRecognizer = (*OCR)(nil)
	_ locator.BoxRecognizer  = (*OCR)(nil)
)

// NewOCR creates a recognizer for language, e.g. "eng".
func NewOCR(language string) (*OCR, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			return nil, fmt.Errorf("set ocr language: %w", err)
		}
	}
	return &OCR{client: client}, nil
}

// Close releases the Tesseract client.
func (o *OCR) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.client.Close()
}

// RecognizeText returns the text inside region, or "" on failure.
func (o *OCR) RecognizeText(ctx context.Context, frame image.Image, region image.Rectangle) string {
	data, ok := o.prepare(ctx, frame, region)
	if !ok {
		return ""
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.client.SetImageFromBytes(data); err != nil {
		return ""
	}
	text, err := o.client.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// RecognizeBoxes returns text lines inside region in frame coordinates,
// top to bottom.
func (o *OCR) RecognizeBoxes(ctx context.Context, frame image.Image, region image.Rectangle) []locator.TextBox {
	data, ok := o.prepare(ctx, frame, region)
	if !ok {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.client.SetImageFromBytes(data); err != nil {
		return nil
	}
	boxes, err := o.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil
	}

	origin := region.Intersect(frame.Bounds()).Min
	out := make([]locator.TextBox, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, locator.TextBox{Text: text, Bounds: b.Box.Add(origin)})
	}
	return out
}

// prepare crops region from frame and binarizes it.
func (o *OCR) prepare(ctx context.Context, frame image.Image, region image.Rectangle) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	r := region.Intersect(frame.Bounds())
	if r.Empty() {
		return nil, false
	}
	if si, ok := frame.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		frame = si.SubImage(r)
	}
	data, err := Preprocess(frame)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Preprocess converts img to a blurred, Otsu-thresholded, lightly dilated
// PNG for Tesseract.
func Preprocess(img image.Image) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(blurred, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(bin, &dilated, kernel)

	out, err := dilated.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

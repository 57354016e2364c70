//go:build desktop

package desktop

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestPreprocess_Binarizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 30, G: 30, B: 30, A: 255}
			if x >= 10 && x < 30 && y >= 5 && y < 15 {
				c = color.RGBA{R: 220, G: 220, B: 220, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	data, err := Preprocess(img)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Bounds().Size() != img.Bounds().Size() {
		t.Fatalf("size = %v, want %v", out.Bounds().Size(), img.Bounds().Size())
	}

	for _, p := range []image.Point{{0, 0}, {20, 10}} {
		g := color.GrayModel.Convert(out.At(p.X, p.Y)).(color.Gray).Y
		if g != 0 && g != 255 {
			t.Errorf("pixel %v = %d, want binary", p, g)
		}
	}
	if bg, fg := color.GrayModel.Convert(out.At(0, 0)).(color.Gray).Y, color.GrayModel.Convert(out.At(20, 10)).(color.Gray).Y; bg == fg {
		t.Errorf("background and foreground both %d", bg)
	}
}

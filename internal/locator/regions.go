package locator

import (
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// colorMask marks pixels inside the configured HSV band.
// Index is (y-minY)*width + (x-minX).
func colorMask(frame image.Image, cfg Config) []bool {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make([]bool, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c, ok := colorful.MakeColor(frame.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				continue // fully transparent
			}
			hue, sat, val := c.Hsv()
			if hue >= cfg.HueMin && hue <= cfg.HueMax && sat >= cfg.SatMin && val >= cfg.ValMin {
				mask[y*w+x] = true
			}
		}
	}
	return mask
}

// colorRegions returns bounding boxes of 4-connected in-band regions,
// in frame coordinates.
func colorRegions(frame image.Image, cfg Config) []image.Rectangle {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := colorMask(frame, cfg)
	visited := make([]bool, len(mask))

	var regions []image.Rectangle
	queue := make([]int, 0, 1024)

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		minX, minY := start%w, start/w
		maxX, maxY := minX, minY

		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			x, y := idx%w, idx/w
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			if x > 0 {
				queue = visit(mask, visited, queue, idx-1)
			}
			if x < w-1 {
				queue = visit(mask, visited, queue, idx+1)
			}
			if y > 0 {
				queue = visit(mask, visited, queue, idx-w)
			}
			if y < h-1 {
				queue = visit(mask, visited, queue, idx+w)
			}
		}

		regions = append(regions, image.Rect(
			b.Min.X+minX, b.Min.Y+minY,
			b.Min.X+maxX+1, b.Min.Y+maxY+1,
		))
	}
	return regions
}

func visit(mask, visited []bool, queue []int, idx int) []int {
	if mask[idx] && !visited[idx] {
		visited[idx] = true
		queue = append(queue, idx)
	}
	return queue
}

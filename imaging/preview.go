// Package imaging produces small preview thumbnails from generated
// images for the history database and dashboard.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultPreviewSize is the maximum edge length of a thumbnail.
const DefaultPreviewSize = 128

// Thumbnail scales PNG data so its longest edge is at most maxSize,
// preserving aspect ratio. Images already within bounds are re-encoded
// unscaled. maxSize <= 0 uses DefaultPreviewSize.
func Thumbnail(pngData []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultPreviewSize
	}

	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("imaging: failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	tw, th := fitWithin(w, h, maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("imaging: failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

// fitWithin scales (w, h) down to fit in a maxSize square. Dimensions
// never drop below 1.
func fitWithin(w, h, maxSize int) (int, int) {
	if w <= maxSize && h <= maxSize {
		return w, h
	}

	if w >= h {
		scaled := h * maxSize / w
		if scaled < 1 {
			scaled = 1
		}
		return maxSize, scaled
	}

	scaled := w * maxSize / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxSize
}

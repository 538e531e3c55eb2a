package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	// DefaultMaxEdge bounds the longest edge of a normalized image.
	DefaultMaxEdge = 1024

	jpegQuality = 85
)

// Normalize decodes encoded image bytes, downscales the image so its longest
// edge does not exceed maxEdge (aspect ratio preserved, images already within
// the bound are kept as-is) and re-encodes it as JPEG. Pure transform.
func Normalize(data []byte, maxEdge uint) ([]byte, error) {
	if maxEdge == 0 {
		maxEdge = DefaultMaxEdge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > int(maxEdge) || h > int(maxEdge) {
		if w >= h {
			img = resize.Resize(maxEdge, 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, maxEdge, img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

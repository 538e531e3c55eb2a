package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode normalized image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg output, got %s", format)
	}
	return cfg.Width, cfg.Height
}

func TestNormalize_DownscalesLongEdge(t *testing.T) {
	data := encodePNG(t, 400, 100)

	out, err := Normalize(data, 200)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 200 {
		t.Errorf("Expected width 200, got %d", w)
	}
	if h != 50 {
		t.Errorf("Expected height 50, got %d", h)
	}
}

func TestNormalize_TallImage(t *testing.T) {
	data := encodePNG(t, 100, 400)

	out, err := Normalize(data, 200)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	w, h := decodeDims(t, out)
	if h != 200 {
		t.Errorf("Expected height 200, got %d", h)
	}
	if w != 50 {
		t.Errorf("Expected width 50, got %d", w)
	}
}

func TestNormalize_SmallImageKeptAsIs(t *testing.T) {
	data := encodePNG(t, 80, 60)

	out, err := Normalize(data, 200)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 80 || h != 60 {
		t.Errorf("Expected 80x60, got %dx%d", w, h)
	}
}

func TestNormalize_InvalidData(t *testing.T) {
	if _, err := Normalize([]byte("garbage"), 200); err == nil {
		t.Error("Expected error for undecodable input")
	}
}

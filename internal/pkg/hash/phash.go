package hash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
)

// ImageHash represents a computed perceptual image hash.
type ImageHash struct {
	Hash   uint64
	Width  int
	Height int
}

// PerceptualHasher computes DCT-based perceptual hashes of images.
type PerceptualHasher struct{}

// NewPerceptualHasher creates a new PerceptualHasher.
func NewPerceptualHasher() *PerceptualHasher {
	return &PerceptualHasher{}
}

// ComputePHash computes the DCT-based perceptual hash of an image.
func (ph *PerceptualHasher) ComputePHash(img image.Image) (*ImageHash, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("failed to compute pHash: %w", err)
	}
	return &ImageHash{
		Hash:   hash.GetHash(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

// ComputePHashFromBytes computes a perceptual hash from encoded image bytes.
func (ph *PerceptualHasher) ComputePHashFromBytes(data []byte) (*ImageHash, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ph.ComputePHash(img)
}

// String returns a hex string representation of the hash.
func (h *ImageHash) String() string {
	return fmt.Sprintf("%016x", h.Hash)
}

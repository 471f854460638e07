// Package image provides the image sources a printer reads DrawImage input
// from.
package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
)

// FileSource reads image files as they are on disk.
type FileSource struct{}

func (FileSource) Load(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// BitmapSource decodes an image file, scales it down to the printer width,
// reduces it to black and white and returns it as a BMP.
type BitmapSource struct {
	Converter
}

// NewBitmapSource returns a BitmapSource for a printer maxWidth dots wide.
func NewBitmapSource(maxWidth int, threshold float64) *BitmapSource {
	return &BitmapSource{Converter{MaxWidth: maxWidth, Threshold: threshold}}
}

func (s *BitmapSource) Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return s.Encode(img)
}

// Encode converts an already decoded image.
func (s *BitmapSource) Encode(img image.Image) ([]byte, error) {
	if s.MaxWidth > 0 && img.Bounds().Dx() > s.MaxWidth {
		img = resize.Resize(uint(s.MaxWidth), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, s.Monochrome(img)); err != nil {
		return nil, fmt.Errorf("encode bmp: %w", err)
	}
	return buf.Bytes(), nil
}

package image

import (
	"image"
	"image/color"
)

// Converter turns an image into black and white dots.
type Converter struct {
	// The maximum line width of the printer, in dots
	MaxWidth int

	// The threshold between white and black dots, 0..1 lightness
	Threshold float64
}

// ToRaster packs img into rows of bytesWidth bytes, one bit per dot, most
// significant bit first. A set bit is a black dot. Columns past MaxWidth
// are dropped.
func (c *Converter) ToRaster(img image.Image) (data []byte, imageWidth, bytesWidth int) {
	b := img.Bounds()
	sz := b.Size()

	imageWidth = sz.X
	if c.MaxWidth > 0 && imageWidth > c.MaxWidth {
		imageWidth = c.MaxWidth
	}

	bytesWidth = imageWidth / 8
	if imageWidth%8 != 0 {
		bytesWidth += 1
	}

	data = make([]byte, bytesWidth*sz.Y)

	for y := 0; y < sz.Y; y++ {
		for x := 0; x < imageWidth; x++ {
			if lightness(img.At(b.Min.X+x, b.Min.Y+y)) <= c.Threshold {
				// line_start is y * bytesWidth, then 8 dots per byte
				data[y*bytesWidth+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}

	return
}

var monoPalette = color.Palette{color.White, color.Black}

// Monochrome returns img as a two colour paletted image: index 0 white,
// index 1 black.
func (c *Converter) Monochrome(img image.Image) *image.Paletted {
	data, w, bw := c.ToRaster(img)
	h := img.Bounds().Dy()

	out := image.NewPaletted(image.Rect(0, 0, w, h), monoPalette)
	for y := 0; y < h; y++ {
		row := data[y*bw : (y+1)*bw]
		for x := 0; x < w; x++ {
			if row[x/8]&(0x80>>uint(x%8)) != 0 {
				out.Pix[y*out.Stride+x] = 1
			}
		}
	}
	return out
}

const (
	lumR, lumG, lumB = 55, 182, 18
)

func lightness(c color.Color) float64 {
	r, g, b, _ := c.RGBA()

	return float64(lumR*r+lumG*g+lumB*b) / float64(0xffff*(lumR+lumG+lumB))
}

package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// halfBlack is w x h with the left half black and the right half white.
func halfBlack(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestToRaster(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 1))
	for x := 0; x < 10; x++ {
		img.Set(x, 0, color.White)
	}
	img.Set(0, 0, color.Black)
	img.Set(9, 0, color.Black)

	c := &Converter{MaxWidth: 512, Threshold: 0.5}
	data, w, bw := c.ToRaster(img)

	assert.Equal(t, 10, w)
	assert.Equal(t, 2, bw)
	assert.Equal(t, []byte{0x80, 0x40}, data)
}

func TestToRasterTruncatesToMaxWidth(t *testing.T) {
	c := &Converter{MaxWidth: 8, Threshold: 0.5}
	data, w, bw := c.ToRaster(halfBlack(32, 2))

	assert.Equal(t, 8, w)
	assert.Equal(t, 1, bw)
	assert.Equal(t, []byte{0xFF, 0xFF}, data)
}

func TestMonochrome(t *testing.T) {
	c := &Converter{MaxWidth: 512, Threshold: 0.5}
	out := c.Monochrome(halfBlack(8, 2))

	require.Equal(t, image.Rect(0, 0, 8, 2), out.Bounds())
	assert.Equal(t, uint8(1), out.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(1), out.ColorIndexAt(3, 1))
	assert.Equal(t, uint8(0), out.ColorIndexAt(4, 0))
	assert.Equal(t, uint8(0), out.ColorIndexAt(7, 1))
}

func TestFileSource(t *testing.T) {
	path := writePNG(t, halfBlack(4, 4))
	want, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := FileSource{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileSourceMissing(t *testing.T) {
	_, err := FileSource{}.Load(filepath.Join(t.TempDir(), "missing.bmp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBitmapSource(t *testing.T) {
	path := writePNG(t, halfBlack(40, 8))
	src := NewBitmapSource(20, 0.5)

	data, err := src.Load(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("BM")))

	img, err := bmp.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	assert.Less(t, lightness(img.At(0, 0)), 0.5)
	assert.Greater(t, lightness(img.At(19, 0)), 0.5)
}

func TestBitmapSourceRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := NewBitmapSource(512, 0.5).Load(path)
	assert.Error(t, err)
}

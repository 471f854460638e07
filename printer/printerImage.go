package printer

import (
	"fmt"

	"github.com/AlexStarov/escbuf/command"
)

// ImageInput is what DrawImage prints: either RawImage or ImagePath.
type ImageInput interface {
	isImageInput()
}

// RawImage is an image already in the printer's format.
type RawImage []byte

// ImagePath is an image file loaded through the printer's ImageSource.
type ImagePath string

func (RawImage) isImageInput()  {}
func (ImagePath) isImageInput() {}

// DrawImage appends the image command followed by the image bytes. For an
// ImagePath the file is loaded first; a load failure is an *ImageLoadError
// and the buffer is left as it was.
func (p *Printer) DrawImage(in ImageInput) error {
	if !p.Ready() {
		return ErrInvalidState
	}
	switch v := in.(type) {
	case RawImage:
		return p.Append(command.Image(v))

	case ImagePath:
		data, err := p.images.Load(string(v))
		if err != nil {
			return &ImageLoadError{Path: string(v), Err: err}
		}
		return p.Append(command.Image(data))

	default:
		return fmt.Errorf("printer: unsupported image input %T", in)
	}
}

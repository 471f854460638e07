// Package command lowers print operations to the byte sequences an Epic-style
// receipt printer expects. Every function is pure and returns a fresh slice.
package command

const (
	esc = 0x1B
	lf  = 0x0A
	cr  = 0x0D
	etx = 0x03

	// autoFeedLines is how far the paper is fed before a cut so that the
	// end of the ticket clears the knife.
	autoFeedLines = 10
)

// Justify is the horizontal alignment mode of the printer.
type Justify byte

const (
	Left   Justify = 0
	Center Justify = 1
	Right  Justify = 2
)

func (j Justify) String() string {
	switch j {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// LineFeed returns n line feeds. n <= 0 yields an empty slice.
func LineFeed(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = lf
	}
	return out
}

// CarriageReturn returns CR.
func CarriageReturn() []byte {
	return []byte{cr}
}

// Cut returns the paper cut command, preceded by ten line feeds when autoFeed is set.
func Cut(autoFeed bool) []byte {
	out := make([]byte, 0, autoFeedLines+2)
	if autoFeed {
		out = append(out, LineFeed(autoFeedLines)...)
	}
	return append(out, esc, 0x76)
}

// LeftRightMargins returns ESC X x x2.
func LeftRightMargins(x, x2 byte) []byte {
	return []byte{esc, 0x58, x, x2}
}

// SetJustify returns ESC a j. The value is not checked.
func SetJustify(j Justify) []byte {
	return []byte{esc, 0x61, byte(j)}
}

func JustifyLeft() []byte   { return SetJustify(Left) }
func JustifyCenter() []byte { return SetJustify(Center) }
func JustifyRight() []byte  { return SetJustify(Right) }

// Image returns ESC FS P followed by data untouched. The printer's own
// decoder consumes the payload, so nothing may be inserted into it.
func Image(data []byte) []byte {
	out := make([]byte, 0, 3+len(data))
	out = append(out, esc, 0x1C, 0x50)
	return append(out, data...)
}

// Barcode sets the bar height and width, then sends data terminated by ETX.
// width and height pass through unclamped; their valid range is printer defined.
func Barcode(data []byte, width, height byte) []byte {
	out := make([]byte, 0, 12+len(data))
	out = append(out, esc, 0x19, 0x42, height)
	out = append(out, esc, 0x19, 0x57, width)
	out = append(out, esc, 0x62, 0x0B)
	out = append(out, data...)
	return append(out, etx)
}

// Text returns the justification command for j followed by s in Windows-1252.
func Text(s string, j Justify) ([]byte, error) {
	enc, err := EncodeText(s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 3+len(enc))
	out = append(out, SetJustify(j)...)
	return append(out, enc...), nil
}

// Line is Text followed by CR LF.
func Line(s string, j Justify) ([]byte, error) {
	out, err := Text(s, j)
	if err != nil {
		return nil, err
	}
	out = append(out, CarriageReturn()...)
	return append(out, LineFeed(1)...), nil
}

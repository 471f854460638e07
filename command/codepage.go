package command

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// EncodingError reports a rune with no Windows-1252 representation.
// Invalid UTF-8 is reported as U+FFFD.
type EncodingError struct {
	Rune   rune
	Offset int // byte offset in the source string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("command: rune %U at offset %d is not representable in windows-1252", e.Rune, e.Offset)
}

// EncodeText converts s to Windows-1252. Nothing is substituted: the first
// unmappable rune fails the whole conversion.
func EncodeText(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		// U+FFFD has no cp1252 slot, so invalid UTF-8 fails here too.
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			return nil, &EncodingError{Rune: r, Offset: i}
		}
		out = append(out, b)
	}
	return out, nil
}

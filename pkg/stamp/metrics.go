package stamp

import (
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/text/encoding/charmap"
)

// stampBaseFont is one of the standard 14 fonts, so readers supply it and the
// document needs no embedded font program.
const stampBaseFont = "Helvetica-Bold"

// Font size at which font.TextWidth reports glyph space units unscaled.
const glyphSpaceSize = 1000

// encodeWinAnsi converts text to the single byte encoding the stamp font
// uses. Runes outside Windows-1252 become '?'.
func encodeWinAnsi(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r == utf8.RuneError {
			out = append(out, '?')
			continue
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// textWidth measures encoded text set in Helvetica-Bold at size.
func textWidth(encoded []byte, size float64) float64 {
	// The core font metrics are indexed by WinAnsi code.
	codes := make([]rune, len(encoded))
	for i, c := range encoded {
		codes[i] = rune(c)
	}

	units := font.TextWidth(string(codes), stampBaseFont, glyphSpaceSize)
	return units * size / glyphSpaceSize
}

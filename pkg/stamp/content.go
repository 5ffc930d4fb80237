package stamp

import (
	"bytes"
	"fmt"
)

type rgb struct{ r, g, b float64 }

var (
	plateFill   = rgb{0.98, 0.98, 0.98}
	plateStroke = rgb{0.8, 0.8, 0.8}
	labelColor  = rgb{0.2, 0.2, 0.2}
	linkColor   = rgb{0.1, 0.4, 0.9}
)

func (c rgb) String() string {
	return formatNumber(c.r) + " " + formatNumber(c.g) + " " + formatNumber(c.b)
}

// layout holds the positions of everything drawn on the page, in default
// user space units.
type layout struct {
	label  []byte
	verify []byte

	x, y        float64
	labelWidth  float64
	verifyWidth float64
}

func computeLayout(box [4]float64, label string) layout {
	l := layout{
		label:  encodeWinAnsi(label),
		verify: encodeWinAnsi(verifyLabel),
	}
	l.labelWidth = textWidth(l.label, fontSize)
	l.verifyWidth = textWidth(l.verify, fontSize)

	pageWidth := box[2] - box[0]
	l.x = box[0] + (pageWidth-l.totalWidth())/2
	l.y = box[1] + bottomMargin

	return l
}

func (l layout) totalWidth() float64 {
	return l.labelWidth + labelGap + l.verifyWidth
}

func (l layout) verifyX() float64 {
	return l.x + l.labelWidth + labelGap
}

// plate is the background rectangle as x, y, width, height.
func (l layout) plate() [4]float64 {
	return [4]float64{
		l.x - plateMarginX,
		l.y - plateMarginY,
		l.totalWidth() + 2*plateMarginX,
		fontSize + 2*plateMarginY,
	}
}

// linkRect is the clickable area over the "Verify Signature" text as
// llx, lly, urx, ury.
func (l layout) linkRect() [4]float64 {
	return [4]float64{
		l.verifyX(),
		l.y - plateMarginY,
		l.verifyX() + l.verifyWidth,
		l.y + fontSize + plateMarginY,
	}
}

// contentStream draws the plate and both labels using font as the resource
// name of Helvetica-Bold. It starts by restoring the graphics state saved in
// front of the page's own content.
func (l layout) contentStream(font string) []byte {
	var buf bytes.Buffer

	buf.WriteString("Q\n")
	buf.WriteString("q\n")

	p := l.plate()
	fmt.Fprintf(&buf, "%s rg\n", plateFill)
	fmt.Fprintf(&buf, "%s RG\n", plateStroke)
	fmt.Fprintf(&buf, "%s w\n", formatNumber(plateBorder))
	fmt.Fprintf(&buf, "%s %s %s %s re\nB\n",
		formatNumber(p[0]), formatNumber(p[1]), formatNumber(p[2]), formatNumber(p[3]))

	writeText(&buf, font, labelColor, l.x, l.y, l.label)
	writeText(&buf, font, linkColor, l.verifyX(), l.y, l.verify)

	buf.WriteString("Q\n")

	return buf.Bytes()
}

func writeText(buf *bytes.Buffer, font string, color rgb, x, y float64, text []byte) {
	buf.WriteString("BT\n")
	fmt.Fprintf(buf, "%s %s Tf\n", pdfName(font), formatNumber(fontSize))
	fmt.Fprintf(buf, "%s rg\n", color)
	fmt.Fprintf(buf, "%s %s Td\n", formatNumber(x), formatNumber(y))
	fmt.Fprintf(buf, "%s Tj\n", pdfLiteral(text))
	buf.WriteString("ET\n")
}

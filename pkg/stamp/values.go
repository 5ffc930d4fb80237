package stamp

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/digitorus/pdf"
)

// Deepest page tree walked when looking up inherited attributes.
const maxTreeDepth = 64

type objRef struct {
	id  uint32
	gen uint16
}

func (r objRef) String() string {
	return strconv.FormatUint(uint64(r.id), 10) + " " + strconv.FormatUint(uint64(r.gen), 10) + " R"
}

// refOf returns the indirect object v was loaded from. Direct values report
// the object that contains them.
func refOf(v pdf.Value) objRef {
	ptr := v.GetPtr()
	return objRef{id: ptr.GetID(), gen: ptr.GetGen()}
}

// inherited looks key up on a page and then on its ancestors in the page tree.
func inherited(page pdf.Value, key string) pdf.Value {
	v := page
	for i := 0; i < maxTreeDepth && v.Kind() == pdf.Dict; i++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

var errStreamValue = errors.New("stream object used as a direct value")

// sealer encrypts a string for the object it is written into. A nil sealer
// writes strings as they are.
type sealer func([]byte) ([]byte, error)

func (s sealer) seal(raw []byte) ([]byte, error) {
	if s == nil {
		return raw, nil
	}
	return s(raw)
}

// writeValue serializes v. Values that were reached through an indirect
// reference, i.e. whose object differs from parent, are written as that
// reference instead of being copied.
func writeValue(buf *bytes.Buffer, v pdf.Value, parent objRef, s sealer) error {
	if ref := refOf(v); ref.id != 0 && ref != parent {
		buf.WriteString(ref.String())
		return nil
	}

	switch v.Kind() {
	case pdf.Null:
		buf.WriteString("null")
	case pdf.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case pdf.Integer:
		buf.WriteString(strconv.FormatInt(v.Int64(), 10))
	case pdf.Real:
		buf.WriteString(formatNumber(v.Float64()))
	case pdf.String:
		raw, err := s.seal([]byte(v.RawString()))
		if err != nil {
			return err
		}
		buf.WriteString("<" + hex.EncodeToString(raw) + ">")
	case pdf.Name:
		buf.WriteString(pdfName(v.Name()))
	case pdf.Array:
		self := refOf(v)
		buf.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteString(" ")
			}
			if err := writeValue(buf, v.Index(i), self, s); err != nil {
				return err
			}
		}
		buf.WriteString("]")
	case pdf.Dict:
		self := refOf(v)
		buf.WriteString("<<")
		for _, key := range v.Keys() {
			buf.WriteString(" " + pdfName(key) + " ")
			if err := writeValue(buf, v.Key(key), self, s); err != nil {
				return err
			}
		}
		buf.WriteString(" >>")
	case pdf.Stream:
		return errStreamValue
	default:
		return fmt.Errorf("unsupported value kind %v", v.Kind())
	}

	return nil
}

// writeEntries writes the entries of dict except the skipped keys.
func writeEntries(buf *bytes.Buffer, dict pdf.Value, s sealer, skip ...string) error {
	self := refOf(dict)

Keys:
	for _, key := range dict.Keys() {
		for _, s := range skip {
			if key == s {
				continue Keys
			}
		}

		buf.WriteString(pdfName(key) + " ")
		if err := writeValue(buf, dict.Key(key), self, s); err != nil {
			return fmt.Errorf("/%s: %w", key, err)
		}
		buf.WriteString("\n")
	}

	return nil
}

// writeElements writes the elements of an array value, or the value itself
// when it is not an array.
func writeElements(buf *bytes.Buffer, v pdf.Value, parent objRef, s sealer) error {
	switch v.Kind() {
	case pdf.Null:
		return nil
	case pdf.Array:
		self := refOf(v)
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(buf, v.Index(i), self, s); err != nil {
				return err
			}
			buf.WriteString(" ")
		}
		return nil
	default:
		if err := writeValue(buf, v, parent, s); err != nil {
			return err
		}
		buf.WriteString(" ")
		return nil
	}
}

func formatNumber(f float64) string {
	f = math.Round(f*1000) / 1000
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func pdfName(name string) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || bytes.IndexByte([]byte("#()<>[]{}/%"), c) >= 0 {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// pdfLiteral writes raw bytes as a literal string, escaping delimiters and
// non-printable bytes.
func pdfLiteral(raw []byte) string {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, c := range raw {
		switch {
		case c == '\\' || c == '(' || c == ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.String()
}

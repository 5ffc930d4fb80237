package stamp

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
)

const stampFontName = "DocsealHB"

type xrefEntry struct {
	ref    objRef
	offset int64
}

// incrementalUpdate appends new and replaced objects after the original bytes
// and closes them with a cross-reference section of the same kind as the
// original file's. Objects written into an encrypted document are encrypted
// with its file key.
type incrementalUpdate struct {
	rdr     *pdf.Reader
	cipher  *objectCipher
	out     *filebuffer.Buffer
	offset  int64
	nextID  uint32
	entries []xrefEntry
}

func newIncrementalUpdate(rdr *pdf.Reader) (*incrementalUpdate, error) {
	size := rdr.Trailer().Key("Size").Int64()
	if size <= 0 || size > math.MaxUint32 {
		return nil, errors.New("trailer has no valid /Size")
	}
	if rdr.Trailer().Key("Root").Kind() != pdf.Dict {
		return nil, errors.New("trailer has no /Root catalog")
	}
	c, err := newObjectCipher(rdr)
	if err != nil {
		return nil, err
	}

	return &incrementalUpdate{
		rdr:    rdr,
		cipher: c,
		out:    filebuffer.New([]byte{}),
		nextID: uint32(size),
	}, nil
}

func (u *incrementalUpdate) write(p []byte) error {
	n, err := u.out.Write(p)
	u.offset += int64(n)
	return err
}

// begin copies the original document. A newline always follows its %%EOF.
func (u *incrementalUpdate) begin(document []byte) error {
	if err := u.write(document); err != nil {
		return err
	}
	return u.write([]byte("\n"))
}

func (u *incrementalUpdate) allocate() objRef {
	ref := objRef{id: u.nextID}
	u.nextID++
	return ref
}

func (u *incrementalUpdate) writeObject(ref objRef, body []byte) error {
	u.entries = append(u.entries, xrefEntry{ref: ref, offset: u.offset})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.id, ref.gen)
	buf.Write(body)
	buf.WriteString("\nendobj\n")

	return u.write(buf.Bytes())
}

func (u *incrementalUpdate) writeStream(ref objRef, data []byte, compress bool) error {
	var filter string
	if compress {
		deflated, err := deflate(data)
		if err != nil {
			return err
		}
		data = deflated
		filter = " /Filter /FlateDecode"
	}
	if u.cipher != nil {
		encrypted, err := u.cipher.encrypt(ref, data)
		if err != nil {
			return err
		}
		data = encrypted
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "<< /Length %d%s >>\nstream\n", len(data), filter)
	body.Write(data)
	body.WriteString("\nendstream")

	return u.writeObject(ref, body.Bytes())
}

func (u *incrementalUpdate) finish() error {
	if u.rdr.XrefInformation.Type == "stream" {
		return u.writeXrefStream()
	}
	return u.writeXrefTable()
}

func (u *incrementalUpdate) result() []byte {
	return u.out.Buff.Bytes()
}

// writeTrailerEntries carries the catalog, info dictionary, file identifier
// and encryption dictionary over from the previous trailer.
func (u *incrementalUpdate) writeTrailerEntries(buf *bytes.Buffer) error {
	trailer := u.rdr.Trailer()
	self := refOf(trailer)

	for _, key := range []string{"Root", "Info", "ID", "Encrypt"} {
		v := trailer.Key(key)
		if v.IsNull() {
			continue
		}
		buf.WriteString(pdfName(key) + " ")
		if err := writeValue(buf, v, self, nil); err != nil {
			return fmt.Errorf("trailer /%s: %w", key, err)
		}
		buf.WriteString("\n")
	}
	fmt.Fprintf(buf, "/Prev %d\n", u.rdr.XrefInformation.StartPos)

	return nil
}

func (u *incrementalUpdate) writeXrefTable() error {
	start := u.offset

	var buf bytes.Buffer
	buf.WriteString("xref\n")
	for _, run := range xrefRuns(u.entries) {
		fmt.Fprintf(&buf, "%d %d\n", run[0].ref.id, len(run))
		for _, e := range run {
			fmt.Fprintf(&buf, "%010d %05d n\r\n", e.offset, e.ref.gen)
		}
	}

	buf.WriteString("trailer\n<<\n")
	fmt.Fprintf(&buf, "/Size %d\n", u.nextID)
	if err := u.writeTrailerEntries(&buf); err != nil {
		return err
	}
	buf.WriteString(">>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)

	return u.write(buf.Bytes())
}

func (u *incrementalUpdate) writeXrefStream() error {
	self := u.allocate()
	start := u.offset
	if start > math.MaxUint32 {
		return errors.New("document too large for a 4 byte xref offset")
	}

	entries := append(u.entries, xrefEntry{ref: self, offset: start})

	var data bytes.Buffer
	var index []string
	row := make([]byte, 7)
	for _, run := range xrefRuns(entries) {
		index = append(index, fmt.Sprintf("%d %d", run[0].ref.id, len(run)))
		for _, e := range run {
			row[0] = 1
			binary.BigEndian.PutUint32(row[1:5], uint32(e.offset))
			binary.BigEndian.PutUint16(row[5:7], e.ref.gen)
			data.Write(row)
		}
	}

	stream, err := deflate(data.Bytes())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", self.id, self.gen)
	buf.WriteString("<< /Type /XRef\n")
	fmt.Fprintf(&buf, "/Size %d\n", u.nextID)
	buf.WriteString("/W [1 4 2]\n")
	fmt.Fprintf(&buf, "/Index [%s]\n", strings.Join(index, " "))
	if err := u.writeTrailerEntries(&buf); err != nil {
		return err
	}
	buf.WriteString("/Filter /FlateDecode\n")
	fmt.Fprintf(&buf, "/Length %d\n", len(stream))
	buf.WriteString(">>\nstream\n")
	buf.Write(stream)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)

	return u.write(buf.Bytes())
}

// xrefRuns sorts entries by object number and groups consecutive numbers
// into cross-reference subsections.
func xrefRuns(entries []xrefEntry) [][]xrefEntry {
	sorted := append([]xrefEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ref.id < sorted[j].ref.id })

	var runs [][]xrefEntry
	for i, e := range sorted {
		if i > 0 && e.ref.id == sorted[i-1].ref.id+1 {
			runs[len(runs)-1] = append(runs[len(runs)-1], e)
			continue
		}
		runs = append(runs, []xrefEntry{e})
	}
	return runs
}

func deflate(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// writeStamp produces the stamped document: a font, the drawing streams, the
// link annotation and a replacement of the first page that references them.
func writeStamp(document []byte, rdr *pdf.Reader, page pdf.Value, l layout, uri string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = parseError("read", fmt.Errorf("%v", r))
		}
	}()

	u, err := newIncrementalUpdate(rdr)
	if err != nil {
		return nil, parseError("trailer", err)
	}

	pageRef := refOf(page)
	fontRef := u.allocate()
	openRef := u.allocate()
	stampRef := u.allocate()
	linkRef := u.allocate()

	resources := inherited(page, "Resources")
	font := uniqueFontName(resources.Key("Font"))

	pageBody, err := pageUpdate(page, resources, font, fontRef, []objRef{openRef, stampRef}, linkRef, u.cipher.sealer(pageRef))
	if err != nil {
		return nil, parseError("page", err)
	}
	link, err := linkAnnotation(l.linkRect(), pageRef, uri, u.cipher.sealer(linkRef))
	if err != nil {
		return nil, serializeError("link", err)
	}

	steps := []func() error{
		func() error { return u.begin(document) },
		func() error { return u.writeObject(fontRef, []byte(fontDict)) },
		func() error { return u.writeStream(openRef, []byte("q\n"), false) },
		func() error { return u.writeStream(stampRef, l.contentStream(font), true) },
		func() error { return u.writeObject(linkRef, link) },
		func() error { return u.writeObject(pageRef, pageBody) },
		u.finish,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, serializeError("write", err)
		}
	}

	return u.result(), nil
}

const fontDict = "<< /Type /Font /Subtype /Type1 /BaseFont /" + stampBaseFont + " /Encoding /WinAnsiEncoding >>"

func uniqueFontName(fonts pdf.Value) string {
	name := stampFontName
	for i := 1; !fonts.Key(name).IsNull(); i++ {
		name = fmt.Sprintf("%s%d", stampFontName, i)
	}
	return name
}

// pageUpdate rewrites the page dictionary with its effective resources plus
// the stamp font, its content wrapped between the two new streams, and the
// link appended to its annotations. Strings are sealed for the page object.
func pageUpdate(page, resources pdf.Value, font string, fontRef objRef, streams []objRef, linkRef objRef, s sealer) ([]byte, error) {
	self := refOf(page)

	var buf bytes.Buffer
	buf.WriteString("<<\n")
	if err := writeEntries(&buf, page, s, "Resources", "Contents", "Annots"); err != nil {
		return nil, err
	}

	buf.WriteString("/Resources <<\n")
	if resources.Kind() == pdf.Dict {
		if err := writeEntries(&buf, resources, s, "Font"); err != nil {
			return nil, err
		}
	}
	buf.WriteString("/Font <<")
	if fonts := resources.Key("Font"); fonts.Kind() == pdf.Dict {
		fontsRef := refOf(fonts)
		for _, key := range fonts.Keys() {
			buf.WriteString(" " + pdfName(key) + " ")
			if err := writeValue(&buf, fonts.Key(key), fontsRef, s); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteString(" " + pdfName(font) + " " + fontRef.String() + " >>\n>>\n")

	buf.WriteString("/Contents [" + streams[0].String() + " ")
	if err := writeElements(&buf, page.Key("Contents"), self, s); err != nil {
		return nil, fmt.Errorf("/Contents: %w", err)
	}
	buf.WriteString(streams[1].String() + "]\n")

	buf.WriteString("/Annots [")
	if err := writeElements(&buf, page.Key("Annots"), self, s); err != nil {
		return nil, fmt.Errorf("/Annots: %w", err)
	}
	buf.WriteString(linkRef.String() + "]\n")
	buf.WriteString(">>")

	return buf.Bytes(), nil
}

func linkAnnotation(rect [4]float64, page objRef, uri string, s sealer) ([]byte, error) {
	target, err := s.seal([]byte(uri))
	if err != nil {
		return nil, err
	}

	return []byte(fmt.Sprintf(
		"<< /Type /Annot /Subtype /Link /Rect [%s %s %s %s] /Border [0 0 0] /C [0 0 1] /P %s /A << /Type /Action /S /URI /URI %s >> >>",
		formatNumber(rect[0]), formatNumber(rect[1]), formatNumber(rect[2]), formatNumber(rect[3]),
		page, pdfLiteral(target),
	)), nil
}

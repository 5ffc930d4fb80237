package stamp

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/digitorus/pdf"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// fixture describes a small generated document.
type fixture struct {
	pages int

	// annotated gives the first page an existing link annotation.
	annotated bool

	// xrefStream writes a cross-reference stream instead of a table.
	xrefStream bool

	// inheritResources puts the font resources on the page tree root
	// instead of the pages.
	inheritResources bool

	// encryption protects the document with an owner password and an
	// empty user password.
	encryption fixtureEncryption
}

type fixtureEncryption int

const (
	unencrypted fixtureEncryption = iota
	rc4Encrypted
	aes128Encrypted
	aes256Encrypted
)

func (e fixtureEncryption) String() string {
	return [...]string{"none", "rc4-128", "aes-128", "aes-256"}[e]
}

const (
	fixtureURI         = "https://example.com/existing"
	fixtureCaption     = "first page"
	fixtureOwner       = "owner"
	fixturePermissions = int32(-3904)
)

// First element of the trailer /ID of generated documents.
var fixtureID = []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

// fixtureSecurity returns the encryption dictionary for e and the cipher the
// document's strings and streams are encrypted with.
func fixtureSecurity(t *testing.T, e fixtureEncryption) (string, *objectCipher) {
	t.Helper()

	switch e {
	case rc4Encrypted, aes128Encrypted:
		revision := int64(3)
		dict := "/V 2 /R 3 /Length 128"
		if e == aes128Encrypted {
			revision = 4
			dict = "/V 4 /R 4 /Length 128 /CF << /StdCF << /CFM /AESV2 /AuthEvent /DocOpen /Length 16 >> >> /StmF /StdCF /StrF /StdCF"
		}

		o := legacyOwnerEntry([]byte(fixtureOwner), 16)
		perms := fixturePermissions
		key := fileKey(nil, o, uint32(perms), fixtureID, revision, 16)
		u := legacyUserEntry(key)

		dict = fmt.Sprintf("<< /Filter /Standard %s /O <%x> /U <%x> /P %d >>", dict, o, u, fixturePermissions)
		return dict, &objectCipher{key: key, aes: e == aes128Encrypted}

	case aes256Encrypted:
		fek := make([]byte, 32)
		_, err := rand.Read(fek)
		require.NoError(t, err)

		u, ue := aes256Entries(t, nil, fek)
		o, oe := aes256Entries(t, []byte(fixtureOwner), fek)

		dict := fmt.Sprintf("<< /Filter /Standard /V 5 /R 5 /Length 256 "+
			"/CF << /StdCF << /CFM /AESV3 /AuthEvent /DocOpen /Length 32 >> >> /StmF /StdCF /StrF /StdCF "+
			"/O <%x> /U <%x> /OE <%x> /UE <%x> /P %d >>", o, u, oe, ue, fixturePermissions)
		return dict, &objectCipher{key: fek, aes: true, v5: true}

	default:
		return "", nil
	}
}

func legacyOwnerEntry(owner []byte, length int) []byte {
	sum := md5.Sum(padPassword(owner))
	key := sum[:]
	for i := 0; i < 50; i++ {
		sum = md5.Sum(key[:length])
		key = sum[:]
	}

	o := padPassword(nil)
	xorRounds(key[:length], o)
	return o
}

func legacyUserEntry(key []byte) []byte {
	h := md5.New()
	h.Write(passwordPad)
	h.Write(fixtureID)
	u := h.Sum(nil)

	xorRounds(key, u)
	return append(u, passwordPad[:16]...)
}

// xorRounds applies RC4 twenty times, with the key xored with the round.
func xorRounds(key, data []byte) {
	for i := 0; i <= 19; i++ {
		k := make([]byte, len(key))
		for j := range key {
			k[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(k)
		c.XORKeyStream(data, data)
	}
}

// aes256Entries returns the hash entry and wrapped file key for password.
func aes256Entries(t *testing.T, password, fek []byte) (entry, wrapped []byte) {
	t.Helper()

	salts := make([]byte, 16)
	_, err := rand.Read(salts)
	require.NoError(t, err)

	hash := sha256.Sum256(append(bytes.Clone(password), salts[:8]...))
	kek := sha256.Sum256(append(bytes.Clone(password), salts[8:]...))

	block, err := aes.NewCipher(kek[:])
	require.NoError(t, err)
	wrapped = make([]byte, len(fek))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(wrapped, fek)

	return append(hash[:], salts...), wrapped
}

// buildPDF lays out objects as 1 catalog, 2 page tree, 3 font, 4 link
// annotation, then a page and its content stream per page. The encryption
// dictionary, if any, comes last.
func buildPDF(t *testing.T, f fixture) []byte {
	t.Helper()

	encryptDict, c := fixtureSecurity(t, f.encryption)
	seal := func(id int, data string) []byte {
		if c == nil {
			return []byte(data)
		}
		out, err := c.encrypt(objRef{id: uint32(id)}, []byte(data))
		require.NoError(t, err)
		return out
	}

	resources := "/Resources << /Font << /F1 3 0 R >> >>"

	var kids []string
	for i := 0; i < f.pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 5+2*i))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Type /Annot /Subtype /Link /Rect [10 10 50 20] /A << /S /URI /URI <%x> >> >>", seal(4, fixtureURI)),
	}

	tree := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 595 842]", strings.Join(kids, " "), f.pages)
	if f.inheritResources {
		tree += " " + resources
	}
	objects[1] = tree + " >>"

	for i := 0; i < f.pages; i++ {
		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R", 6+2*i)
		if !f.inheritResources {
			page += " " + resources
		}
		if i == 0 {
			page += fmt.Sprintf(" /Caption <%x>", seal(5, fixtureCaption))
		}
		if i == 0 && f.annotated {
			page += " /Annots [4 0 R]"
		}
		page += " >>"

		content := seal(6+2*i, fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Page %d) Tj ET", i+1))
		stream := fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)

		objects = append(objects, page, stream)
	}

	trailer := fmt.Sprintf("/Root 1 0 R /ID [<%x> <%x>]", fixtureID, fixtureID)
	if encryptDict != "" {
		objects = append(objects, encryptDict)
		trailer += fmt.Sprintf(" /Encrypt %d 0 R", len(objects))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	start := buf.Len()
	size := len(objects) + 1

	if f.xrefStream {
		var data bytes.Buffer
		row := make([]byte, 7)
		data.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
		for _, off := range append(offsets, start) {
			row[0] = 1
			binary.BigEndian.PutUint32(row[1:5], uint32(off))
			binary.BigEndian.PutUint16(row[5:7], 0)
			data.Write(row)
		}

		fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] %s /Length %d >>\nstream\n",
			size, size+1, trailer, data.Len())
		buf.Write(data.Bytes())
		buf.WriteString("\nendstream\nendobj\n")
	} else {
		fmt.Fprintf(&buf, "xref\n0 %d\n", size)
		buf.WriteString("0000000000 65535 f\r\n")
		for _, off := range offsets {
			fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
		}
		fmt.Fprintf(&buf, "trailer\n<< /Size %d %s >>\n", size, trailer)
	}

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)

	return buf.Bytes()
}

func openPDF(t *testing.T, document []byte) *pdf.Reader {
	t.Helper()

	rdr, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	require.NoError(t, err)
	return rdr
}

// stampedText returns the strings shown by the last content stream of the
// first page, decoded from WinAnsi.
func stampedText(t *testing.T, document []byte) []string {
	t.Helper()

	page := openPDF(t, document).Page(1).V
	contents := page.Key("Contents")
	require.Equal(t, pdf.Array, contents.Kind())

	var shown []string
	pdf.Interpret(contents.Index(contents.Len()-1), func(stk *pdf.Stack, op string) {
		if op != "Tj" {
			return
		}
		text, err := charmap.Windows1252.NewDecoder().String(stk.Pop().RawString())
		require.NoError(t, err)
		shown = append(shown, text)
	})

	return shown
}

func linkURIs(t *testing.T, document []byte) []string {
	t.Helper()

	annots := openPDF(t, document).Page(1).V.Key("Annots")

	var uris []string
	for i := 0; i < annots.Len(); i++ {
		uris = append(uris, annots.Index(i).Key("A").Key("URI").RawString())
	}
	return uris
}

func TestFixtureIsReadable(t *testing.T) {
	for _, f := range []fixture{
		{pages: 1},
		{pages: 3, annotated: true},
		{pages: 2, xrefStream: true},
		{pages: 1, inheritResources: true},
		{pages: 1, encryption: rc4Encrypted},
		{pages: 2, encryption: aes128Encrypted, xrefStream: true},
		{pages: 1, encryption: aes256Encrypted},
	} {
		rdr := openPDF(t, buildPDF(t, f))
		require.Equal(t, f.pages, rdr.NumPage())
	}
}

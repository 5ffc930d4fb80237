package stamp

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/digitorus/pdf"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://docseal.test"

func fixedClock() time.Time {
	return time.Date(2026, time.October, 19, 14, 5, 0, 0, time.UTC)
}

func newTestEngine() *Engine {
	return NewEngine(Options{Origin: testOrigin + "/", Now: fixedClock})
}

func TestStampSinglePage(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1})

	res, err := newTestEngine().Stamp(input, "A. Smith", "Acme", "Manager")
	require.NoError(t, err)

	_, err = uuid.Parse(res.Identifier)
	require.NoError(t, err)
	assert.Equal(t, testOrigin+"/verify/"+res.Identifier, res.VerifyURL)
	assert.Equal(t, "Signed by A. Smith - Acme (Manager) - 19 octobre 2026 à 14:05", res.Label)
	assert.Equal(t, fixedClock(), res.SignedAt)

	shown := stampedText(t, res.Document)
	require.Len(t, shown, 2)
	assert.Contains(t, shown[0], "Signed by A. Smith - Acme (Manager)")
	assert.Equal(t, "Verify Signature", shown[1])

	assert.Equal(t, []string{res.VerifyURL}, linkURIs(t, res.Document))
}

func TestStampKeepsExistingAnnotations(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1, annotated: true})

	res, err := newTestEngine().Stamp(input, "A. Smith", "Acme", "Manager")
	require.NoError(t, err)

	assert.Equal(t, []string{fixtureURI, res.VerifyURL}, linkURIs(t, res.Document))
}

func TestStampOnlyTouchesFirstPage(t *testing.T) {
	input := buildPDF(t, fixture{pages: 3})

	res, err := newTestEngine().Stamp(input, "A. Smith", "", "")
	require.NoError(t, err)

	rdr := openPDF(t, res.Document)
	require.Equal(t, 3, rdr.NumPage())

	assert.Equal(t, pdf.Array, rdr.Page(1).V.Key("Contents").Kind())
	for n := 2; n <= 3; n++ {
		page := rdr.Page(n).V
		assert.Equal(t, pdf.Stream, page.Key("Contents").Kind(), "page %d", n)
		assert.True(t, page.Key("Annots").IsNull(), "page %d", n)
	}
}

func TestStampXrefStream(t *testing.T) {
	input := buildPDF(t, fixture{pages: 2, xrefStream: true, annotated: true})

	res, err := newTestEngine().Stamp(input, "A. Smith", "Acme", "Manager")
	require.NoError(t, err)

	rdr := openPDF(t, res.Document)
	assert.Equal(t, "stream", rdr.XrefInformation.Type)
	assert.Equal(t, 2, rdr.NumPage())
	assert.Equal(t, []string{fixtureURI, res.VerifyURL}, linkURIs(t, res.Document))
	assert.Contains(t, stampedText(t, res.Document)[0], "Signed by A. Smith")
}

func TestStampInheritedResources(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1, inheritResources: true})

	res, err := newTestEngine().Stamp(input, "A. Smith", "", "")
	require.NoError(t, err)

	fonts := openPDF(t, res.Document).Page(1).V.Key("Resources").Key("Font")
	assert.Equal(t, "Helvetica", fonts.Key("F1").Key("BaseFont").Name())
	assert.Equal(t, "Helvetica-Bold", fonts.Key(stampFontName).Key("BaseFont").Name())
}

func TestStampOmitsEmptySegments(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1})

	res, err := newTestEngine().Stamp(input, "Jane Doe", "", "")
	require.NoError(t, err)

	assert.Equal(t, "Signed by Jane Doe - 19 octobre 2026 à 14:05", res.Label)
	assert.Equal(t, res.Label, stampedText(t, res.Document)[0])
}

func TestStampEnglishLocale(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1})
	e := NewEngine(Options{Origin: testOrigin, Locale: "en", Now: fixedClock})

	res, err := e.Stamp(input, "Jane Doe", "Acme", "")
	require.NoError(t, err)

	assert.Equal(t, "Signed by Jane Doe - Acme - October 19, 2026 at 02:05 PM", res.Label)
}

func TestStampTimeZone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata not available")
	}

	input := buildPDF(t, fixture{pages: 1})
	e := NewEngine(Options{Origin: testOrigin, Location: paris, Now: fixedClock})

	res, err := e.Stamp(input, "Jane Doe", "", "")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.Label, "16:05"), res.Label)
}

func TestStampDistinctIdentifiers(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1})
	e := newTestEngine()

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := e.Stamp(input, "A. Smith", "", "")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[res.Identifier])
			seen[res.Identifier] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 16)
}

func TestStampAppendsToInput(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1, annotated: true})
	pristine := bytes.Clone(input)

	res, err := newTestEngine().Stamp(input, "A. Smith", "Acme", "Manager")
	require.NoError(t, err)

	assert.Equal(t, pristine, input)
	assert.True(t, bytes.HasPrefix(res.Document, input))
	assert.Greater(t, len(res.Document), len(input))
}

func TestStampTwice(t *testing.T) {
	for _, xrefStream := range []bool{false, true} {
		input := buildPDF(t, fixture{pages: 1, xrefStream: xrefStream})
		e := newTestEngine()

		first, err := e.Stamp(input, "A. Smith", "", "")
		require.NoError(t, err)
		second, err := e.Stamp(first.Document, "B. Jones", "", "")
		require.NoError(t, err)

		assert.Equal(t, []string{first.VerifyURL, second.VerifyURL}, linkURIs(t, second.Document))
		assert.Contains(t, stampedText(t, second.Document)[0], "Signed by B. Jones")

		page := openPDF(t, second.Document).Page(1).V
		assert.Equal(t, 5, page.Key("Contents").Len())

		fonts := page.Key("Resources").Key("Font")
		assert.False(t, fonts.Key(stampFontName).IsNull())
		assert.False(t, fonts.Key(stampFontName+"1").IsNull())
	}
}

func TestStampRejectsInvalidInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":    {},
		"text":     []byte(strings.Repeat("not a pdf document ", 20)),
		"header":   []byte("%PDF-1.7\n"),
		"no pages": buildPDF(t, fixture{pages: 0}),
		// The header must open the file.
		"leading bytes": append([]byte("garbage\n"), buildPDF(t, fixture{pages: 1})...),
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			pristine := bytes.Clone(input)

			res, err := newTestEngine().Stamp(input, "A. Smith", "", "")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrParse), err.Error())
			assert.False(t, errors.Is(err, ErrSerialize))

			var stampErr *Error
			assert.True(t, errors.As(err, &stampErr))
			assert.Equal(t, pristine, input)
		})
	}
}

func TestStampEncrypted(t *testing.T) {
	for _, enc := range []fixtureEncryption{rc4Encrypted, aes128Encrypted, aes256Encrypted} {
		for _, xrefStream := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/xrefStream=%t", enc, xrefStream), func(t *testing.T) {
				input := buildPDF(t, fixture{pages: 2, annotated: true, xrefStream: xrefStream, encryption: enc})

				res, err := newTestEngine().Stamp(input, "A. Smith", "Acme", "Manager")
				require.NoError(t, err)
				assert.True(t, bytes.HasPrefix(res.Document, input))

				// Stamped text and link only read back if the new
				// objects are encrypted like the original ones.
				assert.Equal(t, []string{fixtureURI, res.VerifyURL}, linkURIs(t, res.Document))
				shown := stampedText(t, res.Document)
				require.Len(t, shown, 2)
				assert.Contains(t, shown[0], "Signed by A. Smith - Acme (Manager)")
				assert.Equal(t, verifyLabel, shown[1])

				rdr := openPDF(t, res.Document)
				assert.Equal(t, 2, rdr.NumPage())
				assert.Equal(t, fixtureCaption, rdr.Page(1).V.Key("Caption").RawString())
				assert.False(t, rdr.Trailer().Key("Encrypt").IsNull())

				// Plaintext of the new strings must not leak into the update.
				assert.NotContains(t, string(res.Document[len(input):]), res.VerifyURL)
			})
		}
	}
}

func TestStampEncryptedTwice(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1, encryption: aes128Encrypted})
	e := newTestEngine()

	first, err := e.Stamp(input, "A. Smith", "", "")
	require.NoError(t, err)
	second, err := e.Stamp(first.Document, "B. Jones", "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{first.VerifyURL, second.VerifyURL}, linkURIs(t, second.Document))
	assert.Contains(t, stampedText(t, second.Document)[0], "Signed by B. Jones")
}

func TestStampUnencryptedLinkIsLiteral(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1})

	res, err := newTestEngine().Stamp(input, "A. Smith", "", "")
	require.NoError(t, err)

	assert.Contains(t, string(res.Document[len(input):]), "/URI ("+res.VerifyURL+")")
}

func TestStampTruncatedDocument(t *testing.T) {
	input := buildPDF(t, fixture{pages: 1})

	_, err := newTestEngine().Stamp(input[:len(input)/2], "A. Smith", "", "")
	assert.ErrorIs(t, err, ErrParse)
}

func TestVerifyURL(t *testing.T) {
	assert.Equal(t, "https://a.test/verify/x", VerifyURL("https://a.test/", "x"))
	assert.Equal(t, "https://a.test/verify/x", VerifyURL("https://a.test", "x"))
}

// Package stamp burns a visible signature block and a verification link into
// the first page of a PDF document.
//
// The original bytes are never rewritten: the stamp is appended as an
// incremental update, so the output starts with the exact input and ends with
// the new objects, a new cross-reference section and a trailer pointing back
// to the previous one.
package stamp

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digitorus/pdf"
	"github.com/google/uuid"
)

const (
	fontSize      = 6.0
	labelGap      = 20.0
	bottomMargin  = 20.0
	plateMarginX  = 5.0
	plateMarginY  = 2.0
	plateBorder   = 0.5
	verifyLabel   = "Verify Signature"
	defaultLocale = "fr"
)

// Letter size, used when a page declares no MediaBox anywhere in its tree.
var defaultMediaBox = [4]float64{0, 0, 612, 792}

// Options configure an Engine.
type Options struct {
	// Origin is the public origin the verification link points to, for
	// example https://docseal.example.com.
	Origin string

	// Locale selects the date format of the label: "fr" or "en".
	Locale string

	// Location is the time zone the signing time is rendered in.
	Location *time.Location

	// Now returns the signing time. Defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of a successful Stamp call.
type Result struct {
	Document   []byte
	Identifier string
	Label      string
	VerifyURL  string
	SignedAt   time.Time
}

// Engine stamps documents. It performs no I/O and is safe for concurrent use.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.Locale == "" {
		opts.Locale = defaultLocale
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Origin = strings.TrimRight(opts.Origin, "/")

	return &Engine{opts: opts}
}

// Stamp returns a copy of document carrying the signature block of
// signerName. Empty organization or role drop their segment of the label.
//
// On failure no document is returned and the error wraps ErrParse or
// ErrSerialize. The input slice is never modified.
func (e *Engine) Stamp(document []byte, signerName, organization, role string) (*Result, error) {
	rdr, page, err := open(document)
	if err != nil {
		return nil, err
	}

	identifier := uuid.NewString()
	signedAt := e.opts.Now().In(e.opts.Location)
	label := composeLabel(signerName, organization, role, formatDate(signedAt, e.opts.Locale))
	verifyURL := VerifyURL(e.opts.Origin, identifier)

	box := mediaBox(page)
	layout := computeLayout(box, label)

	out, err := writeStamp(document, rdr, page, layout, verifyURL)
	if err != nil {
		return nil, err
	}

	return &Result{
		Document:   out,
		Identifier: identifier,
		Label:      label,
		VerifyURL:  verifyURL,
		SignedAt:   signedAt,
	}, nil
}

// VerifyURL returns the public verification link for identifier.
func VerifyURL(origin, identifier string) string {
	return strings.TrimRight(origin, "/") + "/verify/" + identifier
}

// open parses document and returns its first page. The pdf reader reports
// some malformed input by panicking, which is turned into ErrParse here.
func open(document []byte) (rdr *pdf.Reader, page pdf.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			rdr, page = nil, pdf.Value{}
			err = parseError("open", fmt.Errorf("%v", r))
		}
	}()

	// Encrypted documents open with the empty user password. Their
	// permission flags are not enforced here.
	rdr, err = pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, pdf.Value{}, parseError("open", err)
	}

	if rdr.NumPage() < 1 {
		return nil, pdf.Value{}, parseError("open", errors.New("document has no pages"))
	}

	page = rdr.Page(1).V
	if page.Kind() != pdf.Dict {
		return nil, pdf.Value{}, parseError("open", errors.New("first page is missing"))
	}
	if refOf(page).id == 0 {
		return nil, pdf.Value{}, parseError("open", errors.New("first page is not an indirect object"))
	}

	return rdr, page, nil
}

func mediaBox(page pdf.Value) [4]float64 {
	v := inherited(page, "MediaBox")
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return defaultMediaBox
	}

	var box [4]float64
	for i := range box {
		box[i] = v.Index(i).Float64()
	}

	// Normalize boxes given as [urx ury llx lly].
	if box[0] > box[2] {
		box[0], box[2] = box[2], box[0]
	}
	if box[1] > box[3] {
		box[1], box[3] = box[3], box[1]
	}
	if box[2]-box[0] <= 0 || box[3]-box[1] <= 0 {
		return defaultMediaBox
	}

	return box
}

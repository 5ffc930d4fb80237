package routes

import (
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	"github.com/docseal/api/pkg/database"
	"github.com/docseal/api/pkg/models"
	"github.com/docseal/api/pkg/signatures"
	"github.com/docseal/api/pkg/stamp"
)

// Multipart parts above this size are spooled to disk by net/http.
const multipartMemory = 8 << 20

type SignRoutes struct {
	provider   *auth.Provider
	engine     *stamp.Engine
	signatures *signatures.Repository
	logger     *zap.Logger

	maxUploadBytes int64
	rateLimit      int
	rateWindow     time.Duration
}

func NewSignRoutes(
	provider *auth.Provider,
	engine *stamp.Engine,
	repo *signatures.Repository,
	logger *zap.Logger,
	maxUploadBytes int64,
	rateLimit int,
	rateWindow time.Duration,
) *SignRoutes {
	return &SignRoutes{
		provider:       provider,
		engine:         engine,
		signatures:     repo,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		rateLimit:      rateLimit,
		rateWindow:     rateWindow,
	}
}

func (sr SignRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(sr.provider.Authenticated)
		r.Use(httprate.Limit(sr.rateLimit, sr.rateWindow,
			httprate.WithKeyFuncs(
				httprate.KeyByEndpoint,
				func(r *http.Request) (string, error) {
					return auth.SessionIDFromContext(r.Context()), nil
				}),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "Too many documents signed, please wait a moment")
			}),
		))

		r.Post("/", sr.Sign)
	})

	return r
}

// Sign stamps the uploaded PDF for the logged in user, records the signing
// event and sends the stamped document back.
func (sr SignRoutes) Sign(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, sr.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "The document is too large")
			return
		}

		writeError(w, http.StatusBadRequest, "Failed to read the upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "A document title is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A PDF file is required")
		return
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read the upload")
		return
	}

	if http.DetectContentType(document) != "application/pdf" {
		writeError(w, http.StatusBadRequest, "Only PDF documents can be signed")
		return
	}

	signer := user.FullName()
	if signer == "" {
		writeError(w, http.StatusBadRequest, "Your profile needs a name before you can sign")
		return
	}

	res, err := sr.engine.Stamp(document, signer, user.Organization, user.Role)
	if err != nil {
		if errors.Is(err, stamp.ErrParse) {
			sr.logger.Info("rejected unreadable document", zap.String("user_id", user.ID), zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, "The document could not be read as a PDF")
			return
		}

		writeInternalError(w, sr.logger, "failed to stamp document", err, zap.String("user_id", user.ID))
		return
	}

	data := base64.StdEncoding.EncodeToString(res.Document)
	sig := &database.Signature{
		Identifier:    res.Identifier,
		OwnerID:       user.ID,
		DocumentTitle: title,
		SignerName:    signer,
		Organization:  user.Organization,
		Role:          user.Role,
		CreatedAt:     res.SignedAt,
		DocumentData:  &data,
	}

	if _, err := sr.signatures.Save(r.Context(), sig); err != nil {
		writeInternalError(w, sr.logger, "failed to save signature", err,
			zap.String("user_id", user.ID), zap.String("identifier", res.Identifier))
		return
	}

	sr.logger.Info("document signed",
		zap.String("user_id", user.ID),
		zap.String("identifier", res.Identifier),
		zap.Int("bytes", len(res.Document)))

	fileName := signedFileName(header.Filename)

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, models.SignResponse{
			Identifier: res.Identifier,
			VerifyURL:  res.VerifyURL,
			Label:      res.Label,
			SignedAt:   res.SignedAt,
			FileName:   fileName,
			Document:   data,
		})
		return
	}

	w.Header().Set("X-Signature-Id", res.Identifier)
	w.Header().Set("X-Verify-Url", res.VerifyURL)
	writePDF(w, http.StatusCreated, fileName, res.Document)
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// signedFileName derives the download name from the uploaded file name.
func signedFileName(uploaded string) string {
	name := filepath.Base(strings.ReplaceAll(uploaded, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	return "signed_" + name
}

func writePDF(w http.ResponseWriter, status int, fileName string, document []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(status)
	w.Write(document)
}

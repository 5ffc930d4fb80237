package routes

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	"github.com/docseal/api/pkg/models"
	"github.com/docseal/api/pkg/signatures"
)

type SignatureRoutes struct {
	provider   *auth.Provider
	signatures *signatures.Repository
	logger     *zap.Logger
}

func NewSignatureRoutes(provider *auth.Provider, repo *signatures.Repository, logger *zap.Logger) *SignatureRoutes {
	return &SignatureRoutes{
		provider:   provider,
		signatures: repo,
		logger:     logger,
	}
}

func (sr SignatureRoutes) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(sr.provider.Authenticated)

	r.Get("/", sr.listOwn)
	r.Get("/{identifier}/document", sr.document)

	return r
}

func (sr SignatureRoutes) listOwn(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	sigs, err := sr.signatures.FindByOwner(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, sr.logger, "failed to list signatures", err, zap.String("user_id", user.ID))
		return
	}

	writeJSON(w, http.StatusOK, models.SignatureList{Signatures: sigs})
}

// document sends back the stored stamped copy. Only its owner and
// administrators may download it.
func (sr SignatureRoutes) document(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	sig, err := sr.signatures.Document(r.Context(), identifier)
	if err != nil {
		writeInternalError(w, sr.logger, "failed to load document", err, zap.String("identifier", identifier))
		return
	}

	if sig == nil || (sig.OwnerID != user.ID && !user.Admin) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if sig.DocumentData == nil {
		writeError(w, http.StatusNotFound, "No copy of this document was kept")
		return
	}

	document, err := base64.StdEncoding.DecodeString(*sig.DocumentData)
	if err != nil {
		writeInternalError(w, sr.logger, "stored document is not valid base64", err, zap.String("identifier", identifier))
		return
	}

	writePDF(w, http.StatusOK, "signed_"+sig.DocumentTitle+".pdf", document)
}

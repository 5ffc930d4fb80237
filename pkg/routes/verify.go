package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/cache"
	"github.com/docseal/api/pkg/models"
	"github.com/docseal/api/pkg/signatures"
)

// VerifyRoutes serve the public verification links printed on stamps.
type VerifyRoutes struct {
	signatures *signatures.Repository
	cache      *cache.VerificationCache
	logger     *zap.Logger
}

func NewVerifyRoutes(repo *signatures.Repository, vc *cache.VerificationCache, logger *zap.Logger) *VerifyRoutes {
	return &VerifyRoutes{
		signatures: repo,
		cache:      vc,
		logger:     logger,
	}
}

func (vr VerifyRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{identifier}", vr.Verify)

	return r
}

func (vr VerifyRoutes) Verify(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	cached, err := vr.cache.Get(r.Context(), identifier)
	if err != nil {
		vr.logger.Warn("failed to read verification cache", zap.String("identifier", identifier), zap.Error(err))
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	sig, err := vr.signatures.FindByIdentifier(r.Context(), identifier)
	if err != nil {
		writeInternalError(w, vr.logger, "failed to look up signature", err, zap.String("identifier", identifier))
		return
	}

	if sig == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	pl := models.NewVerificationPayload(sig)
	if err := vr.cache.Set(r.Context(), pl); err != nil {
		vr.logger.Warn("failed to cache verification", zap.String("identifier", identifier), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, pl)
}

package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	"github.com/docseal/api/pkg/cache"
	"github.com/docseal/api/pkg/database"
	dserrors "github.com/docseal/api/pkg/errors"
	"github.com/docseal/api/pkg/models"
	"github.com/docseal/api/pkg/signatures"
)

type AdminRoutes struct {
	provider   *auth.Provider
	store      database.Store
	signatures *signatures.Repository
	cache      *cache.VerificationCache
	logger     *zap.Logger
}

func NewAdminRoutes(
	provider *auth.Provider,
	store database.Store,
	repo *signatures.Repository,
	vc *cache.VerificationCache,
	logger *zap.Logger,
) *AdminRoutes {
	return &AdminRoutes{
		provider:   provider,
		store:      store,
		signatures: repo,
		cache:      vc,
		logger:     logger,
	}
}

func (ar AdminRoutes) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(ar.provider.Authenticated)
	r.Use(ar.provider.RequireAdmin)

	r.Get("/users", ar.listUsers)
	r.Patch("/users/{id}", ar.patchUser)
	r.Delete("/users/{id}", ar.deleteUser)
	r.Get("/signatures", ar.listSignatures)

	return r
}

func (ar AdminRoutes) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := ar.store.ListUsers(r.Context())
	if err != nil {
		writeInternalError(w, ar.logger, "failed to list users", err)
		return
	}

	writeJSON(w, http.StatusOK, models.UserList{Users: users})
}

func (ar AdminRoutes) patchUser(w http.ResponseWriter, r *http.Request) {
	admin := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var patch database.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse JSON payload")
		return
	}

	if id == admin.ID && patch.Admin != nil && !*patch.Admin {
		writeError(w, http.StatusBadRequest, "You cannot revoke your own administrator role")
		return
	}

	user, err := ar.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, dserrors.RecordNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		writeInternalError(w, ar.logger, "failed to load user", err, zap.String("user_id", id))
		return
	}

	updated, ok := applyPatch(w, user, patch)
	if !ok {
		return
	}

	if err := ar.store.SaveUser(r.Context(), updated); err != nil {
		writeInternalError(w, ar.logger, "failed to update user", err, zap.String("user_id", id))
		return
	}

	ar.logger.Info("user updated by administrator",
		zap.String("admin_id", admin.ID),
		zap.String("user_id", id),
		zap.Bool("admin", updated.Admin))

	writeJSON(w, http.StatusOK, updated)
}

type DeleteUserPayload struct {
	DeletedSignatures int `json:"deleted_signatures"`
}

// deleteUser removes the account together with every signing event it owns.
// Their verification links stop resolving immediately.
func (ar AdminRoutes) deleteUser(w http.ResponseWriter, r *http.Request) {
	admin := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if id == admin.ID {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	removed, err := ar.signatures.DeleteOwnerCascade(r.Context(), id)
	if err != nil {
		if signatures.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		writeInternalError(w, ar.logger, "failed to delete user", err, zap.String("user_id", id))
		return
	}

	if err := ar.cache.Invalidate(r.Context(), removed...); err != nil {
		ar.logger.Warn("failed to invalidate verification cache", zap.Strings("identifiers", removed), zap.Error(err))
	}

	ar.logger.Info("user deleted by administrator",
		zap.String("admin_id", admin.ID),
		zap.String("user_id", id),
		zap.Int("signatures", len(removed)))

	writeJSON(w, http.StatusOK, DeleteUserPayload{DeletedSignatures: len(removed)})
}

func (ar AdminRoutes) listSignatures(w http.ResponseWriter, r *http.Request) {
	sigs, err := ar.signatures.All(r.Context())
	if err != nil {
		writeInternalError(w, ar.logger, "failed to list signatures", err)
		return
	}

	writeJSON(w, http.StatusOK, models.SignatureList{Signatures: sigs})
}

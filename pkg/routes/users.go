package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	"github.com/docseal/api/pkg/database"
	"github.com/docseal/api/pkg/signatures"
)

type UserRoutes struct {
	provider   *auth.Provider
	store      database.Store
	signatures *signatures.Repository
	logger     *zap.Logger
}

func NewUserRoutes(provider *auth.Provider, store database.Store, repo *signatures.Repository, logger *zap.Logger) *UserRoutes {
	return &UserRoutes{
		provider:   provider,
		store:      store,
		signatures: repo,
		logger:     logger,
	}
}

func (ur UserRoutes) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(ur.provider.Authenticated)

	r.Get("/@me", ur.getSelf)
	r.Patch("/@me", ur.patchSelf)

	return r
}

type GetUserPayload struct {
	User           *database.User `json:"user"`
	SignatureCount int64          `json:"signature_count"`
}

func (ur UserRoutes) getSelf(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	count, err := ur.signatures.CountByOwner(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, ur.logger, "failed to count signatures", err, zap.String("user_id", user.ID))
		return
	}

	writeJSON(w, http.StatusOK, GetUserPayload{
		User:           user,
		SignatureCount: count,
	})
}

func (ur UserRoutes) patchSelf(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var patch database.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse JSON payload")
		return
	}

	if patch.Admin != nil {
		writeError(w, http.StatusForbidden, "You cannot change your own administrator role")
		return
	}

	updated, ok := applyPatch(w, user, patch)
	if !ok {
		return
	}

	if err := ur.store.SaveUser(r.Context(), updated); err != nil {
		writeInternalError(w, ur.logger, "failed to update user", err, zap.String("user_id", user.ID))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// applyPatch returns a patched copy of user, or answers 400 when the patch is
// empty or leaves the user without a name.
func applyPatch(w http.ResponseWriter, user *database.User, patch database.UserPatch) (*database.User, bool) {
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return nil, false
	}

	updated := *user
	patch.Apply(&updated)

	updated.FirstName = strings.TrimSpace(updated.FirstName)
	updated.LastName = strings.TrimSpace(updated.LastName)
	updated.Organization = strings.TrimSpace(updated.Organization)
	updated.Role = strings.TrimSpace(updated.Role)

	if updated.FullName() == "" {
		writeError(w, http.StatusBadRequest, "A name is required")
		return nil, false
	}
	if updated.Role == "" {
		updated.Role = database.DefaultRole
	}

	return &updated, true
}

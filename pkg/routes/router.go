package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	"github.com/docseal/api/pkg/cache"
	"github.com/docseal/api/pkg/database"
	"github.com/docseal/api/pkg/logging"
	"github.com/docseal/api/pkg/signatures"
	"github.com/docseal/api/pkg/stamp"
)

type Deps struct {
	Logger     *zap.Logger
	Provider   *auth.Provider
	Store      database.Store
	Signatures *signatures.Repository
	Engine     *stamp.Engine
	Cache      *cache.VerificationCache

	MaxUploadBytes int64
	SignRateLimit  int
	SignRateWindow time.Duration
	SecureCookies  bool
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Mount("/auth", NewAuthRoutes(d.Provider, d.Logger, d.SecureCookies).Routes())
	r.Mount("/users", NewUserRoutes(d.Provider, d.Store, d.Signatures, d.Logger).Routes())
	r.Mount("/sign", NewSignRoutes(d.Provider, d.Engine, d.Signatures, d.Logger,
		d.MaxUploadBytes, d.SignRateLimit, d.SignRateWindow).Routes())
	r.Mount("/signatures", NewSignatureRoutes(d.Provider, d.Signatures, d.Logger).Routes())
	r.Mount("/verify", NewVerifyRoutes(d.Signatures, d.Cache, d.Logger).Routes())
	r.Mount("/admin", NewAdminRoutes(d.Provider, d.Store, d.Signatures, d.Cache, d.Logger).Routes())

	r.Get("/stats", stats(d.Signatures, d.Logger))

	return r
}

func stats(repo *signatures.Repository, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := repo.Stats(r.Context())
		if err != nil {
			writeInternalError(w, logger, "failed to count signatures", err)
			return
		}

		writeJSON(w, http.StatusOK, s)
	}
}

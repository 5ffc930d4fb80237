package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	dserrors "github.com/docseal/api/pkg/errors"
)

type AuthRoutes struct {
	provider      *auth.Provider
	logger        *zap.Logger
	secureCookies bool
}

func NewAuthRoutes(provider *auth.Provider, logger *zap.Logger, secureCookies bool) *AuthRoutes {
	return &AuthRoutes{
		provider:      provider,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

func (ar AuthRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", ar.Register)
	r.Post("/login", ar.Login)
	r.Group(func(r chi.Router) {
		r.Use(ar.provider.Authenticated)
		r.Post("/logout", ar.Logout)
	})

	return r
}

type RegisterPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	auth.Profile
}

func (ar AuthRoutes) Register(w http.ResponseWriter, r *http.Request) {
	var pl RegisterPayload
	if err := decodeJSON(r, &pl); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse JSON payload")
		return
	}

	user, err := ar.provider.CreateAccount(r.Context(), pl.Email, pl.Password, pl.Profile)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		if errors.Is(err, dserrors.EmailTaken) {
			writeError(w, http.StatusConflict, "An account already exists for this email address")
			return
		}

		writeInternalError(w, ar.logger, "failed to create account", err)
		return
	}

	sID, err := ar.provider.StartSession(r.Context(), user)
	if err != nil {
		writeInternalError(w, ar.logger, "failed to save session in redis", err, zap.String("user_id", user.ID))
		return
	}

	ar.setSessionCookie(w, sID)
	writeJSON(w, http.StatusCreated, user)
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ar AuthRoutes) Login(w http.ResponseWriter, r *http.Request) {
	var pl LoginPayload
	if err := decodeJSON(r, &pl); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse JSON payload")
		return
	}

	if pl.Email == "" || pl.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	sID, user, err := ar.provider.Authenticate(r.Context(), pl.Email, pl.Password)
	if err != nil {
		if errors.Is(err, dserrors.InvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		writeInternalError(w, ar.logger, "failed to log in", err)
		return
	}

	ar.setSessionCookie(w, sID)
	writeJSON(w, http.StatusOK, user)
}

func (ar AuthRoutes) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   auth.SESSION_ID_COOKIE,
		Path:   "/",
		MaxAge: -1,
	})

	sId := auth.SessionIDFromContext(r.Context())
	if err := ar.provider.EndSession(r.Context(), sId); err != nil {
		ar.logger.Warn("failed to delete session", zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (ar AuthRoutes) setSessionCookie(w http.ResponseWriter, sID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SESSION_ID_COOKIE,
		Value:    sID,
		Path:     "/",
		Expires:  time.Now().Add(auth.SESSION_TTL),
		HttpOnly: true,
		Secure:   ar.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/docseal/api/pkg/database"
	dserrors "github.com/docseal/api/pkg/errors"
	"github.com/docseal/api/pkg/models"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	sessionKey   contextKey = "session"
	userKey      contextKey = "user"
)

// Authenticated rejects requests without a live session. The session id, the
// session and the freshly loaded user are put in the request context.
func (p *Provider) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SESSION_ID_COOKIE)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write(models.CreateError("You need to be logged in"))
			return
		}

		sessionId := c.Value

		session, user, err := p.CurrentIdentity(r.Context(), sessionId)
		if err != nil {
			if errors.Is(err, dserrors.Unauthorized) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write(models.CreateError("You need to be logged in"))
				return
			}

			p.logger.Error("failed to resolve session", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write(models.CreateError(models.GenericErrorMessage))
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, sessionIDKey, sessionId)
		ctx = context.WithValue(ctx, sessionKey, session)
		ctx = context.WithValue(ctx, userKey, user)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticated. Both the claim written into the
// session at login and the user record loaded for this request must grant
// the role, so a revocation applies at once.
func (p *Provider) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write(models.CreateError("You need to be logged in"))
			return
		}

		session := SessionFromContext(r.Context())
		if session == nil || !session.Admin || !user.Admin {
			w.WriteHeader(http.StatusForbidden)
			w.Write(models.CreateError("Administrator access required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

func UserFromContext(ctx context.Context) *database.User {
	u, _ := ctx.Value(userKey).(*database.User)
	return u
}

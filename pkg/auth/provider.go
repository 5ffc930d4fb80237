// Package auth is the identity provider: email and password accounts with
// sessions kept in redis.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/docseal/api/pkg/database"
	dserrors "github.com/docseal/api/pkg/errors"
)

const minPasswordLength = 8

// Compared against when the email is unknown so both failures take as long.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("docseal-dummy-password"), bcrypt.DefaultCost)

type Profile struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization"`
	Role         string `json:"role"`
}

type Provider struct {
	store    database.Store
	sessions SessionStore
	admins   map[string]bool
	logger   *zap.Logger
	cost     int
}

// NewProvider returns a provider backed by store and sessions. Accounts
// registered with one of adminEmails are administrators.
func NewProvider(store database.Store, sessions SessionStore, adminEmails []string, logger *zap.Logger) *Provider {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = true
		}
	}

	return &Provider{
		store:    store,
		sessions: sessions,
		admins:   admins,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string, profile Profile) (*database.User, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, dserrors.Invalid("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		return nil, dserrors.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if strings.TrimSpace(profile.FirstName) == "" && strings.TrimSpace(profile.LastName) == "" {
		return nil, dserrors.Invalid("first_name", "a name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(profile.FirstName),
		LastName:     strings.TrimSpace(profile.LastName),
		Organization: strings.TrimSpace(profile.Organization),
		Role:         strings.TrimSpace(profile.Role),
		Admin:        p.admins[email],
	}

	if err := p.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, dserrors.DuplicateRecord) {
			return nil, dserrors.EmailTaken
		}
		return nil, err
	}

	p.logger.Info("account created", zap.String("user_id", user.ID), zap.Bool("admin", user.Admin))
	return user, nil
}

// Authenticate checks the credentials and opens a session.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (string, *database.User, error) {
	user, err := p.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, dserrors.RecordNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", nil, dserrors.InvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, dserrors.InvalidCredentials
	}

	sessionID, err := p.StartSession(ctx, user)
	if err != nil {
		return "", nil, err
	}

	return sessionID, user, nil
}

func (p *Provider) StartSession(ctx context.Context, user *database.User) (string, error) {
	return p.sessions.CreateSession(ctx, Session{
		UserID:    user.ID,
		Admin:     user.Admin,
		CreatedAt: time.Now(),
	})
}

func (p *Provider) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return p.sessions.DeleteSession(ctx, sessionID)
}

// CurrentIdentity resolves a session id to the session and its user. It
// returns dserrors.Unauthorized when either is gone; a session whose user was
// deleted is removed.
func (p *Provider) CurrentIdentity(ctx context.Context, sessionID string) (*Session, *database.User, error) {
	if sessionID == "" {
		return nil, nil, dserrors.Unauthorized
	}

	session, err := p.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, dserrors.Unauthorized
	}

	user, err := p.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, dserrors.RecordNotFound) {
			if err := p.sessions.DeleteSession(ctx, sessionID); err != nil {
				p.logger.Warn("failed to delete orphaned session", zap.Error(err))
			}
			return nil, nil, dserrors.Unauthorized
		}
		return nil, nil, err
	}

	return session, user, nil
}

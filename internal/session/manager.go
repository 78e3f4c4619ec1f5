// Package session implements the server-side session records behind the
// session cookie. The client only ever holds the opaque token; everything
// else lives in the SessionStore.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"lilypad/internal/models"
	"lilypad/internal/utils"

	"github.com/google/uuid"
)

// SessionStore persists session records keyed by token.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}

// Manager creates, reads, regenerates and destroys sessions and owns the
// cookie that carries the token.
type Manager struct {
	store        SessionStore
	ttl          time.Duration
	cookieName   string
	secureCookie bool
}

func NewManager(store SessionStore, ttl time.Duration, cookieName string, secureCookie bool) *Manager {
	return &Manager{
		store:        store,
		ttl:          ttl,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Create allocates a new empty session
func (m *Manager) Create(ctx context.Context) (*models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, utils.NewSessionFailureError("failed to generate session token", err)
	}

	now := time.Now()
	session := &models.Session{
		ID:        token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return nil, utils.NewSessionFailureError("failed to save session", err)
	}
	return session, nil
}

// Read returns the session for a token, rejecting expired records.
func (m *Manager) Read(ctx context.Context, token string) (*models.Session, error) {
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		// Expired sessions behave like missing ones; clean up lazily.
		_ = m.store.Delete(ctx, token)
		return nil, utils.NewAppError(utils.ErrSessionNotFound, "Session not found", nil)
	}
	return session, nil
}

// Regenerate invalidates the old token and issues a fresh empty session.
// The old record is deleted before the new one is written, so a concurrent
// read of the old token fails rather than returning stale state. No
// authentication state is carried over; this is the fixation defense run on
// every login and OAuth-callback transition.
func (m *Manager) Regenerate(ctx context.Context, oldToken string) (*models.Session, error) {
	if oldToken != "" {
		if err := m.store.Delete(ctx, oldToken); err != nil {
			return nil, utils.NewSessionFailureError("failed to invalidate old session", err)
		}
	}
	return m.Create(ctx)
}

// Bind marks the session authenticated for the given user and persists it
func (m *Manager) Bind(ctx context.Context, session *models.Session, userID uuid.UUID) error {
	session.UserID = userID
	session.LoggedIn = true
	if err := m.store.Save(ctx, session); err != nil {
		return utils.NewSessionFailureError("failed to bind session", err)
	}
	return nil
}

// Destroy removes the server-side record. The caller still has to clear the
// client cookie via ClearCookie.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if err := m.store.Delete(ctx, token); err != nil {
		return utils.NewSessionFailureError("failed to destroy session", err)
	}
	return nil
}

// FromRequest resolves the session referenced by the request cookie, if any.
func (m *Manager) FromRequest(ctx context.Context, r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrSessionNotFound, "Session not found", nil)
	}
	return m.Read(ctx, cookie.Value)
}

// WriteCookie propagates the session token to the response. HttpOnly always;
// Secure follows config and must only be disabled for local development.
func (m *Manager) WriteCookie(w http.ResponseWriter, session *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the client to drop the session cookie
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// CookieName exposes the configured cookie name for tests and handlers
func (m *Manager) CookieName() string {
	return m.cookieName
}

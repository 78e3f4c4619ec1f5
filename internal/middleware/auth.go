// internal/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"lilypad/internal/engine"
	"lilypad/internal/engine/actors"
	"lilypad/internal/models"
	"lilypad/internal/session"
	"lilypad/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// LoginPath is where denied requests are redirected
const LoginPath = "/login"

// Gate guards protected routes. A request is admitted when its cookie maps
// to a logged-in session whose userId still resolves to an existing user;
// anything else is a 302 to the login page, never a bare 401.
type Gate struct {
	Sessions *session.Manager
	Engine   *engine.Engine
	Context  *actor.RootContext
	Timeout  time.Duration
}

func NewGate(sessions *session.Manager, eng *engine.Engine, rootContext *actor.RootContext) *Gate {
	return &Gate{
		Sessions: sessions,
		Engine:   eng,
		Context:  rootContext,
		Timeout:  5 * time.Second,
	}
}

// Admit reports whether the session carries a valid authenticated identity.
func (g *Gate) Admit(sess *models.Session) (*models.User, bool) {
	if sess == nil || !sess.LoggedIn || sess.UserID == uuid.Nil {
		return nil, false
	}

	future := g.Context.RequestFuture(g.Engine.GetUserActor(), &actors.GetUserMsg{UserID: sess.UserID}, g.Timeout)
	result, err := future.Result()
	if err != nil {
		log.Printf("Auth gate: user lookup failed: %v", err)
		return nil, false
	}

	user, ok := result.(*models.User)
	if !ok {
		return nil, false
	}
	return user, true
}

// Protect wraps a handler with the auth gate. On admission the user and
// session are injected into the request context; on denial the original
// request is dropped and the client is redirected to the login surface.
func (g *Gate) Protect(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.Sessions.FromRequest(r.Context(), r)
		if err != nil {
			if !utils.IsErrorCode(err, utils.ErrSessionNotFound) {
				log.Printf("Auth gate: session read failed: %v", err)
				http.Error(w, "Session failure", http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		user, ok := g.Admit(sess)
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		ctx := SetUserInContext(r.Context(), user)
		ctx = SetSessionInContext(ctx, sess)
		handler(w, r.WithContext(ctx))
	}
}

// Define a custom context key type to avoid collisions
type contextKey string

const (
	userKey    contextKey = "user"
	sessionKey contextKey = "session"
)

// SetUserInContext saves the authenticated user in the request context
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

// SetSessionInContext saves the session record in the request context
func SetSessionInContext(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// GetSessionFromContext retrieves the session record from the context
func GetSessionFromContext(ctx context.Context) (*models.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*models.Session)
	return sess, ok
}

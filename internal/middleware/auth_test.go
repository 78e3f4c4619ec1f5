package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lilypad/internal/database"
	"lilypad/internal/engine"
	"lilypad/internal/models"
	"lilypad/internal/session"
	"lilypad/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestGate(t *testing.T) (*Gate, *session.Manager, database.Store) {
	t.Helper()
	store := database.NewMemoryStore()
	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, utils.NewMetricsCollector(), store)
	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, "test_session", false)
	return NewGate(sessions, eng, system.Root), sessions, store
}

func loggedInCookie(t *testing.T, sessions *session.Manager, userID uuid.UUID) *http.Cookie {
	t.Helper()
	ctx := context.Background()
	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}
	if err := sessions.Bind(ctx, sess, userID); err != nil {
		t.Fatalf("Bind session failed: %v", err)
	}
	return &http.Cookie{Name: sessions.CookieName(), Value: sess.ID}
}

func TestProtectRedirectsAnonymous(t *testing.T) {
	gate, _, _ := newTestGate(t)

	handler := gate.Protect(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run for anonymous requests")
	})

	r := httptest.NewRequest("GET", "/profile", nil)
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

func TestProtectRedirectsBogusToken(t *testing.T) {
	gate, sessions, _ := newTestGate(t)

	handler := gate.Protect(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run for a bogus token")
	})

	r := httptest.NewRequest("GET", "/profile", nil)
	r.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: "forged-token"})
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

func TestProtectRedirectsSessionWithoutLogin(t *testing.T) {
	gate, sessions, _ := newTestGate(t)

	// A real session that never went through login
	sess, err := sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}

	handler := gate.Protect(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run for an unauthenticated session")
	})

	r := httptest.NewRequest("GET", "/profile", nil)
	r.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

func TestProtectRedirectsDeletedUser(t *testing.T) {
	gate, sessions, _ := newTestGate(t)

	// Session bound to a user id that no longer resolves
	cookie := loggedInCookie(t, sessions, uuid.New())

	handler := gate.Protect(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run when the user no longer exists")
	})

	r := httptest.NewRequest("GET", "/profile", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

func TestProtectAdmitsAuthenticatedUser(t *testing.T) {
	gate, sessions, store := newTestGate(t)

	user := &models.User{
		ID:          uuid.New(),
		Username:    "gatorfan",
		MemberSince: time.Now(),
	}
	if err := store.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	called := false
	handler := gate.Protect(func(w http.ResponseWriter, r *http.Request) {
		called = true

		ctxUser, ok := GetUserFromContext(r.Context())
		if assert.True(t, ok) {
			assert.Equal(t, user.ID, ctxUser.ID)
			assert.Equal(t, "gatorfan", ctxUser.Username)
		}

		ctxSess, ok := GetSessionFromContext(r.Context())
		if assert.True(t, ok) {
			assert.True(t, ctxSess.LoggedIn)
			assert.Equal(t, user.ID, ctxSess.UserID)
		}

		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest("GET", "/profile", nil)
	r.AddCookie(loggedInCookie(t, sessions, user.ID))
	w := httptest.NewRecorder()
	handler(w, r)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"lilypad/internal/database"
	"lilypad/internal/engine"
	"lilypad/internal/handlers"
	"lilypad/internal/middleware"
	"lilypad/internal/oauth"
	"lilypad/internal/render"
	"lilypad/internal/session"
	"lilypad/internal/utils"
	"lilypad/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
)

// fakeProvider stands in for Google during tests
type fakeProvider struct {
	profile *oauth.Profile
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://fake-provider.example/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth.Profile, error) {
	if code != "good-code" {
		return nil, utils.NewProviderError("code exchange rejected", nil)
	}
	return p.profile, nil
}

type testApp struct {
	ts    *httptest.Server
	store database.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store := database.NewMemoryStore()
	metrics := utils.NewMetricsCollector()
	system := actor.NewActorSystem()
	appEngine := engine.NewEngine(system, metrics, store)

	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, "test_session", false)

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("Failed to parse templates: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	provider := &fakeProvider{profile: &oauth.Profile{
		Subject: "fake-subject-1",
		Email:   "gator@example.com",
		Name:    "Fake Gator",
	}}
	states := oauth.NewStateCodec("test-state-secret")

	gate := middleware.NewGate(sessions, appEngine, system.Root)
	server := handlers.NewServer(system, system.Root, appEngine, gate, metrics, sessions, provider, states, renderer, hub)

	ts := httptest.NewServer(newMux(server, gate))
	t.Cleanup(ts.Close)

	return &testApp{ts: ts, store: store}
}

// noRedirect stops the client at the first response so tests can assert on
// 302s and Set-Cookie headers directly.
var noRedirect = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", a.ts.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		t.Fatalf("Request to %s failed: %v", path, err)
	}
	return resp
}

func (a *testApp) get(t *testing.T, path string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", a.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		t.Fatalf("Request to %s failed: %v", path, err)
	}
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "test_session" && c.MaxAge >= 0 {
			return c
		}
	}
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return string(body)
}

// register creates an account and logs it in, returning the session cookie
func (a *testApp) register(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	resp := a.postForm(t, "/register", url.Values{
		"username": {username},
		"password": {password},
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Registration of %s returned %d", username, resp.StatusCode)
	}

	resp = a.postForm(t, "/login", url.Values{
		"username": {username},
		"password": {password},
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Login of %s returned %d", username, resp.StatusCode)
	}
	cookie := sessionCookie(resp)
	if cookie == nil {
		t.Fatalf("Login of %s set no session cookie", username)
	}
	return cookie
}

func TestRegisterLoginAndPostFlow(t *testing.T) {
	app := newTestApp(t)

	// Anonymous home works
	resp := app.get(t, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Log in")

	// Protected pages bounce to the login form
	resp = app.get(t, "/profile", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// Registration redirects to login without a session
	resp = app.postForm(t, "/register", url.Values{
		"username": {"alice"},
		"password": {"password123"},
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Nil(t, sessionCookie(resp))

	// Duplicate username bounces back to the form with an error
	resp = app.postForm(t, "/register", url.Values{
		"username": {"alice"},
		"password": {"other"},
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/register?error=")

	// Wrong password bounces back to login, no cookie
	resp = app.postForm(t, "/login", url.Values{
		"username": {"alice"},
		"password": {"wrong"},
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/login?error=")
	assert.Nil(t, sessionCookie(resp))

	// Unknown username fails the same way as a wrong password
	resp = app.postForm(t, "/login", url.Values{
		"username": {"nobody"},
		"password": {"password123"},
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/login?error=")

	// Correct credentials log in
	resp = app.postForm(t, "/login", url.Values{
		"username": {"alice"},
		"password": {"password123"},
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	cookie := sessionCookie(resp)
	if cookie == nil {
		t.Fatal("Login set no session cookie")
	}
	assert.True(t, cookie.HttpOnly)

	// Home now shows the signed-in state
	resp = app.get(t, "/", cookie)
	assert.Contains(t, readBody(t, resp), "Signed in as alice")

	// Create a post
	resp = app.postForm(t, "/posts", url.Values{
		"title":   {"Hello swamp"},
		"content": {"First post"},
	}, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp = app.get(t, "/", nil)
	assert.Contains(t, readBody(t, resp), "Hello swamp")

	// Anonymous likes are counted
	posts, err := app.store.GetRecentPosts(context.Background(), 10)
	if err != nil || len(posts) == 0 {
		t.Fatalf("Expected a stored post, got %v, %v", posts, err)
	}
	postID := posts[0].ID.String()

	resp = app.postForm(t, "/posts/like", url.Values{"postId": {postID}}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	posts, _ = app.store.GetRecentPosts(context.Background(), 10)
	assert.Equal(t, 1, posts[0].Likes)

	// Commenting needs a session
	resp = app.postForm(t, "/posts/comment", url.Values{
		"postId": {postID},
		"text":   {"great post"},
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = app.postForm(t, "/posts/comment", url.Values{
		"postId": {postID},
		"text":   {"great post"},
	}, cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	posts, _ = app.store.GetRecentPosts(context.Background(), 10)
	if assert.Len(t, posts[0].Comments, 1) {
		assert.Equal(t, "great post", posts[0].Comments[0].Text)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	app := newTestApp(t)

	owner := app.register(t, "owner", "password123")
	stranger := app.register(t, "stranger", "password456")

	resp := app.postForm(t, "/posts", url.Values{
		"title":   {"keep out"},
		"content": {"mine"},
	}, owner)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	posts, err := app.store.GetRecentPosts(context.Background(), 10)
	if err != nil || len(posts) == 0 {
		t.Fatalf("Expected a stored post, got %v, %v", posts, err)
	}
	postID := posts[0].ID.String()

	// A different authenticated user gets a 403 and the post survives
	resp = app.postForm(t, "/posts/delete", url.Values{"postId": {postID}}, stranger)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	posts, _ = app.store.GetRecentPosts(context.Background(), 10)
	assert.Len(t, posts, 1)

	// The owner can delete
	resp = app.postForm(t, "/posts/delete", url.Values{"postId": {postID}}, owner)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	posts, _ = app.store.GetRecentPosts(context.Background(), 10)
	assert.Len(t, posts, 0)
}

func TestLoginRegeneratesSession(t *testing.T) {
	app := newTestApp(t)
	first := app.register(t, "fixation", "password123")

	// Logging in again while presenting the old cookie rotates the token
	resp := app.postForm(t, "/login", url.Values{
		"username": {"fixation"},
		"password": {"password123"},
	}, first)
	resp.Body.Close()
	second := sessionCookie(resp)
	if second == nil {
		t.Fatal("Second login set no session cookie")
	}
	assert.NotEqual(t, first.Value, second.Value)

	// The pre-rotation token no longer admits anyone
	resp = app.get(t, "/profile", first)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// The fresh one does
	resp = app.get(t, "/profile", second)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "fixation")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "leaver", "password123")

	resp := app.get(t, "/logout", cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// The cookie is cleared in the response
	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == "test_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout should expire the session cookie")

	// And the old token is dead server-side
	resp = app.get(t, "/profile", cookie)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestGoogleOAuthFlow(t *testing.T) {
	app := newTestApp(t)

	// Kickoff redirects to the provider with a signed state
	resp := app.get(t, "/auth/google", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("Bad redirect location: %v", err)
	}
	assert.Equal(t, "fake-provider.example", location.Host)
	state := location.Query().Get("state")
	assert.NotEmpty(t, state)

	// Forged state is rejected
	resp = app.get(t, "/auth/google/callback?state=forged&code=good-code", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing code is rejected
	resp = app.get(t, "/auth/google/callback?state="+url.QueryEscape(state), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Provider rejection surfaces as a bad gateway, no session
	resp = app.get(t, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=bad-code", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	// A good exchange creates the account and logs it in
	resp = app.get(t, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=good-code", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	cookie := sessionCookie(resp)
	if cookie == nil {
		t.Fatal("OAuth login set no session cookie")
	}

	resp = app.get(t, "/", cookie)
	assert.Contains(t, readBody(t, resp), "Signed in as fakegator")

	// A second login with the same subject reuses the account
	user, err := app.store.GetUserByExternalID(context.Background(), oauth.HashSubject("fake-subject-1"))
	if err != nil {
		t.Fatalf("Expected OAuth user in store: %v", err)
	}

	resp = app.get(t, "/auth/google", nil)
	resp.Body.Close()
	location, _ = url.Parse(resp.Header.Get("Location"))
	state = location.Query().Get("state")

	resp = app.get(t, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=good-code", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	again, err := app.store.GetUserByExternalID(context.Background(), oauth.HashSubject("fake-subject-1"))
	assert.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp := app.get(t, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Posts created")
	assert.Contains(t, body, "Uptime")
}

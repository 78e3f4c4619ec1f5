package handlers

import (
	"log"
	"net/http"

	"lilypad/internal/engine/actors"
	"lilypad/internal/middleware"
	"lilypad/internal/models"
	"lilypad/internal/utils"
)

// loginViewData feeds the login and register templates
type loginViewData struct {
	Error        string
	OAuthEnabled bool
}

// HandleLoginPage renders the login form, echoing back any error from a
// failed attempt.
func (s *Server) HandleLoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderView(w, "login", &loginViewData{
			Error:        r.URL.Query().Get("error"),
			OAuthEnabled: s.Provider != nil,
		})
	}
}

// HandleLogin verifies credentials and, on success, swaps the session for a
// freshly regenerated one bound to the user. A regeneration failure aborts
// the request with a 5xx instead of continuing half-authenticated.
func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		username := r.FormValue("username")
		password := r.FormValue("password")

		result, err := s.ask(s.Engine.GetUserActor(), &actors.LoginMsg{
			Username: username,
			Password: password,
		})
		if err != nil {
			log.Printf("Login request to user actor failed: %v", err)
			s.writeAppError(w, utils.NewActorTimeoutError("user"))
			return
		}

		if appErr, ok := result.(*utils.AppError); ok {
			if utils.IsUserCorrectable(appErr) {
				redirectWithError(w, r, "/login", "Invalid username or password")
				return
			}
			s.writeAppError(w, appErr)
			return
		}

		user := result.(*models.User)
		if err := s.establishSession(w, r, user); err != nil {
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleRegisterPage renders the registration form
func (s *Server) HandleRegisterPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderView(w, "register", &loginViewData{Error: r.URL.Query().Get("error")})
	}
}

// HandleRegister creates a local account. Registration never logs the user
// in; it hands off to the login form.
func (s *Server) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result, err := s.ask(s.Engine.GetUserActor(), &actors.RegisterUserMsg{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		})
		if err != nil {
			log.Printf("Register request to user actor failed: %v", err)
			s.writeAppError(w, utils.NewActorTimeoutError("user"))
			return
		}

		if appErr, ok := result.(*utils.AppError); ok {
			if appErr.Code == utils.ErrDuplicateUsername {
				redirectWithError(w, r, "/register", "Username already exists")
				return
			}
			if utils.IsUserCorrectable(appErr) {
				redirectWithError(w, r, "/register", appErr.Message)
				return
			}
			s.writeAppError(w, appErr)
			return
		}

		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

// HandleLogout destroys the session, clears the cookie and sends the
// browser home.
func (s *Server) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(s.Sessions.CookieName()); err == nil {
			if err := s.Sessions.Destroy(r.Context(), cookie.Value); err != nil {
				log.Printf("Failed to destroy session: %v", err)
				s.writeAppError(w, utils.NewSessionFailureError("Failed to destroy session", err))
				return
			}
		}
		s.Sessions.ClearCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleGoogleLogin starts the OAuth dance with a signed state parameter
func (s *Server) HandleGoogleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Provider == nil {
			http.NotFound(w, r)
			return
		}

		state, err := s.States.New()
		if err != nil {
			log.Printf("Failed to issue OAuth state: %v", err)
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, s.Provider.AuthCodeURL(state), http.StatusFound)
	}
}

// HandleGoogleCallback completes the OAuth dance: validate state, exchange
// the code, resolve the profile to a local user (creating one on first
// login) and bind it into a regenerated session. Provider failures are a
// 502; nothing here establishes a session on any failure path.
func (s *Server) HandleGoogleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Provider == nil {
			http.NotFound(w, r)
			return
		}

		if err := s.States.Validate(r.URL.Query().Get("state")); err != nil {
			log.Printf("OAuth callback with bad state: %v", err)
			http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}

		// Exchange runs under the request context so a disconnected client
		// aborts the provider calls before any session mutation happens.
		profile, err := s.Provider.Exchange(r.Context(), code)
		if err != nil {
			log.Printf("OAuth exchange failed: %v", err)
			if appErr, ok := err.(*utils.AppError); ok {
				s.writeAppError(w, appErr)
				return
			}
			s.writeAppError(w, utils.NewProviderError("OAuth exchange failed", err))
			return
		}

		result, err := s.ask(s.Engine.GetUserActor(), &actors.ExternalLoginMsg{Profile: profile})
		if err != nil {
			log.Printf("External login request to user actor failed: %v", err)
			s.writeAppError(w, utils.NewActorTimeoutError("user"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		user := result.(*models.User)
		if err := s.establishSession(w, r, user); err != nil {
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleProfile renders the authenticated user's profile and posts
func (s *Server) HandleProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUserFromContext(r.Context())
		if user == nil {
			http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
			return
		}

		result, err := s.ask(s.Engine.GetPostActor(), &actors.GetUserPostsMsg{AuthorID: user.ID})
		if err != nil {
			s.writeAppError(w, utils.NewActorTimeoutError("post"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		posts := result.([]*models.Post)
		s.renderView(w, "profile", map[string]interface{}{
			"User":  user,
			"Posts": posts,
		})
	}
}

// establishSession regenerates the session and binds the user to it. The
// old token, if any, is invalidated first; session-store failures write a
// 5xx and report back with a non-nil error.
func (s *Server) establishSession(w http.ResponseWriter, r *http.Request, user *models.User) error {
	oldToken := ""
	if cookie, err := r.Cookie(s.Sessions.CookieName()); err == nil {
		oldToken = cookie.Value
	}

	sess, err := s.Sessions.Regenerate(r.Context(), oldToken)
	if err != nil {
		log.Printf("Session regeneration failed: %v", err)
		s.writeAppError(w, utils.NewSessionFailureError("Failed to regenerate session", err))
		return err
	}
	if err := s.Sessions.Bind(r.Context(), sess, user.ID); err != nil {
		log.Printf("Session bind failed: %v", err)
		s.writeAppError(w, utils.NewSessionFailureError("Failed to bind session", err))
		return err
	}

	s.Sessions.WriteCookie(w, sess)
	return nil
}

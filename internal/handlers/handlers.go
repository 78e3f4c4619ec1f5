package handlers

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"lilypad/internal/engine"
	"lilypad/internal/middleware"
	"lilypad/internal/models"
	"lilypad/internal/oauth"
	"lilypad/internal/render"
	"lilypad/internal/session"
	"lilypad/internal/utils"
	"lilypad/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Gate           *middleware.Gate
	Metrics        *utils.MetricsCollector
	Sessions       *session.Manager
	Provider       oauth.Provider // nil when OAuth login is disabled
	States         *oauth.StateCodec
	Renderer       *render.Renderer
	Hub            *websocket.Hub
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	rootContext *actor.RootContext,
	eng *engine.Engine,
	gate *middleware.Gate,
	metrics *utils.MetricsCollector,
	sessions *session.Manager,
	provider oauth.Provider,
	states *oauth.StateCodec,
	renderer *render.Renderer,
	hub *websocket.Hub,
) *Server {
	return &Server{
		System:         system,
		Context:        rootContext,
		Engine:         eng,
		Gate:           gate,
		Metrics:        metrics,
		Sessions:       sessions,
		Provider:       provider,
		States:         states,
		Renderer:       renderer,
		Hub:            hub,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// ask sends a message to an actor and waits for the reply
func (s *Server) ask(pid *actor.PID, msg interface{}) (interface{}, error) {
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	return future.Result()
}

// writeAppError converts an AppError to its HTTP status
func (s *Server) writeAppError(w http.ResponseWriter, appErr *utils.AppError) {
	s.Metrics.IncrementErrors()
	http.Error(w, appErr.Message, utils.AppErrorToHTTPStatus(appErr.Code))
}

// redirectWithError sends the browser back to a form with the failure
// message in the error query parameter.
func redirectWithError(w http.ResponseWriter, r *http.Request, path string, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusFound)
}

func (s *Server) renderView(w http.ResponseWriter, view string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Renderer.Render(w, view, data); err != nil {
		log.Printf("Failed to render view %s: %v", view, err)
	}
}

// currentUser resolves the request's session to a user without requiring
// authentication. Unauthenticated and broken sessions both come back nil.
func (s *Server) currentUser(r *http.Request) (*models.User, *models.Session) {
	sess, err := s.Sessions.FromRequest(r.Context(), r)
	if err != nil {
		return nil, nil
	}
	user, ok := s.Gate.Admit(sess)
	if !ok {
		return nil, sess
	}
	return user, sess
}

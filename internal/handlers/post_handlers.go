package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"lilypad/internal/engine/actors"
	"lilypad/internal/middleware"
	"lilypad/internal/models"
	"lilypad/internal/utils"
	"lilypad/internal/websocket"

	"github.com/google/uuid"
)

const homeFeedLimit = 50

// homeViewData feeds the home template
type homeViewData struct {
	User  *models.User
	Posts []*models.Post
}

// HandleHome renders the feed, newest posts first. The page works logged
// out; the signed-in user just gets the post form and delete buttons.
func (s *Server) HandleHome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.Metrics.IncrementRequests()

		user, _ := s.currentUser(r)

		result, err := s.ask(s.Engine.GetPostActor(), &actors.GetRecentPostsMsg{Limit: homeFeedLimit})
		if err != nil {
			s.writeAppError(w, utils.NewActorTimeoutError("post"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		posts := result.([]*models.Post)
		s.renderView(w, "home", &homeViewData{User: user, Posts: posts})
	}
}

// HandleCreatePost creates a post for the authenticated user
func (s *Server) HandleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		user, _ := middleware.GetUserFromContext(r.Context())

		result, err := s.ask(s.Engine.GetPostActor(), &actors.CreatePostMsg{
			Title:          r.FormValue("title"),
			Content:        r.FormValue("content"),
			AuthorID:       user.ID,
			AuthorUsername: user.Username,
		})
		if err != nil {
			log.Printf("Create post request failed: %v", err)
			s.writeAppError(w, utils.NewActorTimeoutError("post"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		post := result.(*models.Post)
		s.Hub.Publish(&websocket.Event{
			Type:   "post_created",
			PostID: post.ID.String(),
			Author: post.AuthorUsername,
			Title:  post.Title,
		})

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleLikePost bumps the like counter. Liking requires no login and no
// ownership; the increment itself is atomic at the storage layer.
func (s *Server) HandleLikePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		postID, err := uuid.Parse(r.FormValue("postId"))
		if err != nil {
			http.Error(w, "Invalid postId", http.StatusBadRequest)
			return
		}

		result, err := s.ask(s.Engine.GetPostActor(), &actors.LikePostMsg{PostID: postID})
		if err != nil {
			s.writeAppError(w, utils.NewActorTimeoutError("post"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		like := result.(*actors.LikeResult)
		s.Hub.Publish(&websocket.Event{
			Type:   "post_liked",
			PostID: like.PostID.String(),
			Likes:  like.Likes,
		})

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleComment appends a comment for the authenticated user
func (s *Server) HandleComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		user, _ := middleware.GetUserFromContext(r.Context())

		postID, err := uuid.Parse(r.FormValue("postId"))
		if err != nil {
			http.Error(w, "Invalid postId", http.StatusBadRequest)
			return
		}

		result, err := s.ask(s.Engine.GetPostActor(), &actors.AddCommentMsg{
			PostID:         postID,
			AuthorID:       user.ID,
			AuthorUsername: user.Username,
			Text:           r.FormValue("text"),
		})
		if err != nil {
			s.writeAppError(w, utils.NewActorTimeoutError("post"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleDeletePost deletes a post when the authenticated user owns it.
// Ownership violations fail closed with 403 and leave the post in place.
func (s *Server) HandleDeletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		user, _ := middleware.GetUserFromContext(r.Context())

		postID, err := uuid.Parse(r.FormValue("postId"))
		if err != nil {
			http.Error(w, "Invalid postId", http.StatusBadRequest)
			return
		}

		result, err := s.ask(s.Engine.GetPostActor(), &actors.DeletePostMsg{
			PostID: postID,
			UserID: user.ID,
		})
		if err != nil {
			s.writeAppError(w, utils.NewActorTimeoutError("post"))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// HandleHealth reports post counts and request metrics
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.ask(s.Engine.GetPostActor(), &actors.GetCountsMsg{})
		if err != nil {
			http.Error(w, "Failed to get post count", http.StatusInternalServerError)
			return
		}
		postCount := result.(int)

		requests, errors, uptime := s.Metrics.Snapshot()
		fmt.Fprintf(w, "Lilypad Status:\n"+
			"- Posts created: %d\n"+
			"- Requests: %d\n"+
			"- Errors: %d\n"+
			"- Uptime: %s\n",
			postCount, requests, errors, uptime.Round(time.Second))
	}
}

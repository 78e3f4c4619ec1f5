package actors

import (
	"log"
	"strings"
	"time"

	"lilypad/internal/database"
	"lilypad/internal/models"
	"lilypad/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for Post operations
type (
	CreatePostMsg struct {
		Title          string
		Content        string
		AuthorID       uuid.UUID
		AuthorUsername string
	}

	GetPostMsg struct {
		PostID uuid.UUID
	}

	GetRecentPostsMsg struct {
		Limit int
	}

	GetUserPostsMsg struct {
		AuthorID uuid.UUID
	}

	LikePostMsg struct {
		PostID uuid.UUID
	}

	AddCommentMsg struct {
		PostID         uuid.UUID
		AuthorID       uuid.UUID
		AuthorUsername string
		Text           string
	}

	DeletePostMsg struct {
		PostID uuid.UUID
		UserID uuid.UUID
	}

	GetCountsMsg struct{}

	// LikeResult carries the new counter value back to the handler
	LikeResult struct {
		PostID uuid.UUID
		Likes  int
	}
)

// PostActor handles post-related operations. Mutations funnel through its
// mailbox and the store applies counter updates atomically, so concurrent
// likes from many requests never lose an increment.
type PostActor struct {
	store   database.Store
	metrics *utils.MetricsCollector
	count   int
}

// NewPostActor creates a new PostActor instance
func NewPostActor(store database.Store, metrics *utils.MetricsCollector) actor.Actor {
	return &PostActor{
		store:   store,
		metrics: metrics,
	}
}

// Receive handles incoming messages
func (a *PostActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("PostActor started")

	case *CreatePostMsg:
		a.handleCreatePost(context, msg)
	case *GetPostMsg:
		a.handleGetPost(context, msg)
	case *GetRecentPostsMsg:
		a.handleGetRecentPosts(context, msg)
	case *GetUserPostsMsg:
		a.handleGetUserPosts(context, msg)
	case *LikePostMsg:
		a.handleLike(context, msg)
	case *AddCommentMsg:
		a.handleAddComment(context, msg)
	case *DeletePostMsg:
		a.handleDeletePost(context, msg)
	case *GetCountsMsg:
		context.Respond(a.count)
	}
}

func (a *PostActor) handleCreatePost(context actor.Context, msg *CreatePostMsg) {
	startTime := time.Now()
	ctx, cancel := storeCtx()
	defer cancel()

	if strings.TrimSpace(msg.Title) == "" || strings.TrimSpace(msg.Content) == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Title and content are required", nil))
		return
	}

	newPost := &models.Post{
		ID:             uuid.New(),
		Title:          msg.Title,
		Content:        msg.Content,
		AuthorID:       msg.AuthorID,
		AuthorUsername: msg.AuthorUsername,
		CreatedAt:      time.Now(),
		Comments:       []models.Comment{},
	}

	if err := a.store.SavePost(ctx, newPost); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to save post", err))
		return
	}
	a.count++

	a.metrics.AddOperationLatency("create_post", time.Since(startTime))
	context.Respond(newPost)
}

func (a *PostActor) handleGetPost(context actor.Context, msg *GetPostMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	post, err := a.store.GetPost(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Failed to fetch post"))
		return
	}
	context.Respond(post)
}

func (a *PostActor) handleGetRecentPosts(context actor.Context, msg *GetRecentPostsMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	posts, err := a.store.GetRecentPosts(ctx, msg.Limit)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch posts", err))
		return
	}
	context.Respond(posts)
}

func (a *PostActor) handleGetUserPosts(context actor.Context, msg *GetUserPostsMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	posts, err := a.store.GetPostsByAuthor(ctx, msg.AuthorID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch posts", err))
		return
	}
	context.Respond(posts)
}

func (a *PostActor) handleLike(context actor.Context, msg *LikePostMsg) {
	startTime := time.Now()
	ctx, cancel := storeCtx()
	defer cancel()

	likes, err := a.store.IncrementLikes(ctx, msg.PostID)
	if err != nil {
		context.Respond(asAppError(err, "Failed to record like"))
		return
	}

	a.metrics.AddOperationLatency("like_post", time.Since(startTime))
	context.Respond(&LikeResult{PostID: msg.PostID, Likes: likes})
}

func (a *PostActor) handleAddComment(context actor.Context, msg *AddCommentMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	if strings.TrimSpace(msg.Text) == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Comment text is required", nil))
		return
	}

	comment := &models.Comment{
		ID:             uuid.New(),
		AuthorID:       msg.AuthorID,
		AuthorUsername: msg.AuthorUsername,
		Text:           msg.Text,
		CreatedAt:      time.Now(),
	}

	if err := a.store.AddComment(ctx, msg.PostID, comment); err != nil {
		context.Respond(asAppError(err, "Failed to add comment"))
		return
	}
	context.Respond(comment)
}

func (a *PostActor) handleDeletePost(context actor.Context, msg *DeletePostMsg) {
	ctx, cancel := storeCtx()
	defer cancel()

	if err := a.store.DeletePost(ctx, msg.PostID, msg.UserID); err != nil {
		context.Respond(asAppError(err, "Failed to delete post"))
		return
	}
	if a.count > 0 {
		a.count--
	}

	log.Printf("Post %s deleted by author %s", msg.PostID, msg.UserID)
	context.Respond(true)
}

func asAppError(err error, fallback string) *utils.AppError {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr
	}
	return utils.NewAppError(utils.ErrDatabase, fallback, err)
}

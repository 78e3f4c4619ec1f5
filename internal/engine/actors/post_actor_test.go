package actors

import (
	"sync"
	"testing"
	"time"

	"lilypad/internal/database"
	"lilypad/internal/models"
	"lilypad/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func spawnPostActor(t *testing.T) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	store := database.NewMemoryStore()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewPostActor(store, utils.NewMetricsCollector())
	})
	return system, system.Root.Spawn(props)
}

func createPost(t *testing.T, system *actor.ActorSystem, pid *actor.PID, title string, authorID uuid.UUID) *models.Post {
	t.Helper()
	result, err := system.Root.RequestFuture(pid, &CreatePostMsg{
		Title:          title,
		Content:        "content of " + title,
		AuthorID:       authorID,
		AuthorUsername: "author",
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Create post failed: %v", err)
	}
	post, ok := result.(*models.Post)
	if !ok {
		t.Fatalf("Expected post, got %T", result)
	}
	return post
}

func TestPostLifecycle(t *testing.T) {
	system, pid := spawnPostActor(t)
	authorID := uuid.New()

	post := createPost(t, system, pid, "First post", authorID)
	assert.Equal(t, "First post", post.Title)
	assert.Equal(t, 0, post.Likes)
	assert.Empty(t, post.Comments)

	// Fetch it back
	result, err := system.Root.RequestFuture(pid, &GetPostMsg{PostID: post.ID}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get post failed: %v", err)
	}
	fetched := result.(*models.Post)
	assert.Equal(t, post.ID, fetched.ID)

	// Missing post is a NOT_FOUND
	result, err = system.Root.RequestFuture(pid, &GetPostMsg{PostID: uuid.New()}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get missing post request failed: %v", err)
	}
	appErr, ok := result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", result)
	}
	assert.Equal(t, utils.ErrNotFound, appErr.Code)

	// Count tracks creations
	result, err = system.Root.RequestFuture(pid, &GetCountsMsg{}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get counts failed: %v", err)
	}
	assert.Equal(t, 1, result.(int))
}

func TestCreatePostValidation(t *testing.T) {
	system, pid := spawnPostActor(t)

	result, err := system.Root.RequestFuture(pid, &CreatePostMsg{
		Title:          "   ",
		Content:        "body",
		AuthorID:       uuid.New(),
		AuthorUsername: "author",
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	appErr, ok := result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", result)
	}
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestRecentPostsNewestFirst(t *testing.T) {
	system, pid := spawnPostActor(t)
	authorID := uuid.New()

	createPost(t, system, pid, "oldest", authorID)
	time.Sleep(5 * time.Millisecond)
	createPost(t, system, pid, "middle", authorID)
	time.Sleep(5 * time.Millisecond)
	createPost(t, system, pid, "newest", authorID)

	result, err := system.Root.RequestFuture(pid, &GetRecentPostsMsg{Limit: 10}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get recent posts failed: %v", err)
	}
	posts := result.([]*models.Post)
	if assert.Len(t, posts, 3) {
		assert.Equal(t, "newest", posts[0].Title)
		assert.Equal(t, "middle", posts[1].Title)
		assert.Equal(t, "oldest", posts[2].Title)
	}

	// Limit is honored
	result, err = system.Root.RequestFuture(pid, &GetRecentPostsMsg{Limit: 2}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get recent posts failed: %v", err)
	}
	posts = result.([]*models.Post)
	assert.Len(t, posts, 2)
	assert.Equal(t, "newest", posts[0].Title)
}

func TestConcurrentLikesAllCounted(t *testing.T) {
	system, pid := spawnPostActor(t)
	post := createPost(t, system, pid, "popular", uuid.New())

	const likes = 100
	var wg sync.WaitGroup
	for i := 0; i < likes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := system.Root.RequestFuture(pid, &LikePostMsg{PostID: post.ID}, 5*time.Second).Result()
			if err != nil {
				t.Errorf("Like failed: %v", err)
				return
			}
			if appErr, ok := result.(*utils.AppError); ok {
				t.Errorf("Like returned error: %s", appErr.Message)
			}
		}()
	}
	wg.Wait()

	result, err := system.Root.RequestFuture(pid, &GetPostMsg{PostID: post.ID}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get post failed: %v", err)
	}
	assert.Equal(t, likes, result.(*models.Post).Likes)
}

func TestLikeMissingPost(t *testing.T) {
	system, pid := spawnPostActor(t)

	result, err := system.Root.RequestFuture(pid, &LikePostMsg{PostID: uuid.New()}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	appErr, ok := result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", result)
	}
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

func TestComments(t *testing.T) {
	system, pid := spawnPostActor(t)
	post := createPost(t, system, pid, "discussed", uuid.New())
	commenterID := uuid.New()

	result, err := system.Root.RequestFuture(pid, &AddCommentMsg{
		PostID:         post.ID,
		AuthorID:       commenterID,
		AuthorUsername: "commenter",
		Text:           "nice post",
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Add comment failed: %v", err)
	}
	comment, ok := result.(*models.Comment)
	if !ok {
		t.Fatalf("Expected comment, got %T", result)
	}
	assert.Equal(t, "nice post", comment.Text)

	// Comment shows up on the post
	result, err = system.Root.RequestFuture(pid, &GetPostMsg{PostID: post.ID}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get post failed: %v", err)
	}
	fetched := result.(*models.Post)
	if assert.Len(t, fetched.Comments, 1) {
		assert.Equal(t, "nice post", fetched.Comments[0].Text)
		assert.Equal(t, commenterID, fetched.Comments[0].AuthorID)
	}

	// Blank text is rejected
	result, err = system.Root.RequestFuture(pid, &AddCommentMsg{
		PostID:         post.ID,
		AuthorID:       commenterID,
		AuthorUsername: "commenter",
		Text:           "  ",
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	appErr, ok := result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", result)
	}
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)

	// Commenting on a missing post is a NOT_FOUND
	result, err = system.Root.RequestFuture(pid, &AddCommentMsg{
		PostID:         uuid.New(),
		AuthorID:       commenterID,
		AuthorUsername: "commenter",
		Text:           "hello?",
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	appErr, ok = result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", result)
	}
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

func TestDeletePostOwnership(t *testing.T) {
	system, pid := spawnPostActor(t)
	ownerID := uuid.New()
	strangerID := uuid.New()
	post := createPost(t, system, pid, "mine", ownerID)

	// A non-owner cannot delete the post
	result, err := system.Root.RequestFuture(pid, &DeletePostMsg{
		PostID: post.ID,
		UserID: strangerID,
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Delete request failed: %v", err)
	}
	appErr, ok := result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError for non-owner delete, got %T", result)
	}
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	// The post is still there
	result, err = system.Root.RequestFuture(pid, &GetPostMsg{PostID: post.ID}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get post failed: %v", err)
	}
	assert.IsType(t, &models.Post{}, result)

	// The owner can
	result, err = system.Root.RequestFuture(pid, &DeletePostMsg{
		PostID: post.ID,
		UserID: ownerID,
	}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Delete request failed: %v", err)
	}
	assert.Equal(t, true, result)

	// And now it is gone
	result, err = system.Root.RequestFuture(pid, &GetPostMsg{PostID: post.ID}, 5*time.Second).Result()
	if err != nil {
		t.Fatalf("Get post failed: %v", err)
	}
	appErr, ok = result.(*utils.AppError)
	if !ok {
		t.Fatalf("Expected AppError after delete, got %T", result)
	}
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

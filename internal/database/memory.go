package database

import (
	"context"
	"sort"
	"sync"

	"lilypad/internal/models"
	"lilypad/internal/utils"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in maps behind a single mutex. It backs tests
// and local development; lookups are O(1) by id and by the two unique keys.
type MemoryStore struct {
	mu              sync.RWMutex
	users           map[uuid.UUID]*models.User
	usersByName     map[string]uuid.UUID
	usersByExternal map[string]uuid.UUID
	posts           map[uuid.UUID]*models.Post
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[uuid.UUID]*models.User),
		usersByName:     make(map[string]uuid.UUID),
		usersByExternal: make(map[string]uuid.UUID),
		posts:           make(map[uuid.UUID]*models.Post),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Comments = make([]models.Comment, len(p.Comments))
	copy(c.Comments, p.Comments)
	return &c
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.usersByName[user.Username]; ok && existingID != user.ID {
		return utils.NewDuplicateUsernameError(user.Username)
	}
	if user.ExternalID != "" {
		if existingID, ok := s.usersByExternal[user.ExternalID]; ok && existingID != user.ID {
			return utils.NewAppError(utils.ErrDuplicate, "external identity already registered", nil)
		}
	}

	s.users[user.ID] = copyUser(user)
	s.usersByName[user.Username] = user.ID
	if user.ExternalID != "" {
		s.usersByExternal[user.ExternalID] = user.ID
	}
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", nil)
	}
	return copyUser(user), nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return nil, utils.NewUserNotFoundError(username)
	}
	return copyUser(s.users[id]), nil
}

func (s *MemoryStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByExternal[externalID]
	if !ok {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", nil)
	}
	return copyUser(s.users[id]), nil
}

func (s *MemoryStore) SavePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[post.ID] = copyPost(post)
	return nil
}

func (s *MemoryStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return copyPost(post), nil
}

func (s *MemoryStore) GetRecentPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, copyPost(post))
	}

	// Reverse chronological: newest first
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *MemoryStore) GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*models.Post, 0)
	for _, post := range s.posts {
		if post.AuthorID == authorID {
			posts = append(posts, copyPost(post))
		}
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (s *MemoryStore) IncrementLikes(ctx context.Context, postID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return 0, utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	post.Likes++
	return post.Likes, nil
}

func (s *MemoryStore) AddComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	post.Comments = append(post.Comments, *comment)
	return nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, postID uuid.UUID, authorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	if post.AuthorID != authorID {
		return utils.NewForbiddenError("only the author can delete a post")
	}
	delete(s.posts, postID)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

package database

import (
	"context"

	"lilypad/internal/models"

	"github.com/google/uuid"
)

// Store is the persistence boundary for users and posts. Handlers never talk
// to a backend directly; they go through the actors, which call one of the
// Store implementations (memory, MongoDB or Postgres).
//
// Uniqueness of usernames and external IDs is enforced by every
// implementation at insertion time. IncrementLikes must be atomic at the
// storage layer so concurrent likes are never lost. DeletePost only removes
// the post when authorID matches the stored author and fails closed
// otherwise.
type Store interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)

	SavePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetRecentPosts(ctx context.Context, limit int) ([]*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error)
	IncrementLikes(ctx context.Context, postID uuid.UUID) (int, error)
	AddComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) error
	DeletePost(ctx context.Context, postID uuid.UUID, authorID uuid.UUID) error

	Close(ctx context.Context) error
}

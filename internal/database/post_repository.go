// internal/database/post_repository.go
package database

import (
	"context"
	"fmt"
	"time"

	"lilypad/internal/models"
	"lilypad/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostDocument represents the MongoDB schema for a post. Comments are
// embedded: they are append-only and always read together with the post.
type PostDocument struct {
	ID             string            `bson:"_id"`
	Title          string            `bson:"title"`
	Content        string            `bson:"content"`
	AuthorID       string            `bson:"authorId"`
	AuthorUsername string            `bson:"authorUsername"`
	CreatedAt      time.Time         `bson:"createdAt"`
	Likes          int               `bson:"likes"`
	Comments       []CommentDocument `bson:"comments"`
}

type CommentDocument struct {
	ID             string    `bson:"id"`
	AuthorID       string    `bson:"authorId"`
	AuthorUsername string    `bson:"authorUsername"`
	Text           string    `bson:"text"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func (m *MongoDB) postModelToDocument(post *models.Post) *PostDocument {
	doc := &PostDocument{
		ID:             post.ID.String(),
		Title:          post.Title,
		Content:        post.Content,
		AuthorID:       post.AuthorID.String(),
		AuthorUsername: post.AuthorUsername,
		CreatedAt:      post.CreatedAt,
		Likes:          post.Likes,
		Comments:       make([]CommentDocument, len(post.Comments)),
	}
	for i, c := range post.Comments {
		doc.Comments[i] = CommentDocument{
			ID:             c.ID.String(),
			AuthorID:       c.AuthorID.String(),
			AuthorUsername: c.AuthorUsername,
			Text:           c.Text,
			CreatedAt:      c.CreatedAt,
		}
	}
	return doc
}

func (m *MongoDB) postDocumentToModel(doc *PostDocument) (*models.Post, error) {
	postID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID in database: %v", err)
	}
	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID in database: %v", err)
	}

	post := &models.Post{
		ID:             postID,
		Title:          doc.Title,
		Content:        doc.Content,
		AuthorID:       authorID,
		AuthorUsername: doc.AuthorUsername,
		CreatedAt:      doc.CreatedAt,
		Likes:          doc.Likes,
		Comments:       make([]models.Comment, len(doc.Comments)),
	}
	for i, c := range doc.Comments {
		commentID, err := uuid.Parse(c.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid comment ID in database: %v", err)
		}
		commentAuthorID, err := uuid.Parse(c.AuthorID)
		if err != nil {
			return nil, fmt.Errorf("invalid comment author ID in database: %v", err)
		}
		post.Comments[i] = models.Comment{
			ID:             commentID,
			AuthorID:       commentAuthorID,
			AuthorUsername: c.AuthorUsername,
			Text:           c.Text,
			CreatedAt:      c.CreatedAt,
		}
	}
	return post, nil
}

// SavePost creates or updates a post in MongoDB
func (m *MongoDB) SavePost(ctx context.Context, post *models.Post) error {
	doc := m.postModelToDocument(post)

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	_, err := m.Posts.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetPost retrieves a post by its ID
func (m *MongoDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var doc PostDocument

	err := m.Posts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return nil, err
	}

	return m.postDocumentToModel(&doc)
}

// GetRecentPosts returns posts in reverse-chronological order
func (m *MongoDB) GetRecentPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.Posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return m.decodePosts(ctx, cursor)
}

// GetPostsByAuthor returns a single author's posts, newest first
func (m *MongoDB) GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})

	cursor, err := m.Posts.Find(ctx, bson.M{"authorId": authorID.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return m.decodePosts(ctx, cursor)
}

func (m *MongoDB) decodePosts(ctx context.Context, cursor *mongo.Cursor) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	for cursor.Next(ctx) {
		var doc PostDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		post, err := m.postDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, cursor.Err()
}

// IncrementLikes bumps the like counter with an atomic $inc and returns the
// new value, so concurrent likes are never lost.
func (m *MongoDB) IncrementLikes(ctx context.Context, postID uuid.UUID) (int, error) {
	filter := bson.M{"_id": postID.String()}
	update := bson.M{"$inc": bson.M{"likes": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc PostDocument
	err := m.Posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return 0, err
	}
	return doc.Likes, nil
}

// AddComment appends a comment to the post's embedded comment array
func (m *MongoDB) AddComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) error {
	filter := bson.M{"_id": postID.String()}
	update := bson.M{"$push": bson.M{"comments": CommentDocument{
		ID:             comment.ID.String(),
		AuthorID:       comment.AuthorID.String(),
		AuthorUsername: comment.AuthorUsername,
		Text:           comment.Text,
		CreatedAt:      comment.CreatedAt,
	}}}

	result, err := m.Posts.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return nil
}

// DeletePost removes a post only when authorID matches the stored author.
// The author check is part of the delete filter so a non-owner can never
// race past it; a zero delete count is then disambiguated with a lookup.
func (m *MongoDB) DeletePost(ctx context.Context, postID uuid.UUID, authorID uuid.UUID) error {
	filter := bson.M{"_id": postID.String(), "authorId": authorID.String()}

	result, err := m.Posts.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		if _, getErr := m.GetPost(ctx, postID); getErr != nil {
			return getErr
		}
		return utils.NewForbiddenError("only the author can delete a post")
	}
	return nil
}

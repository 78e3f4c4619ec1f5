// internal/database/user_repository.go
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

// UserDocument represents the MongoDB schema for a user
type UserDocument struct {
	ID             string    `bson:"_id"`                  // MongoDB primary key
	Username       string    `bson:"username"`             // Unique username
	ExternalID     string    `bson:"externalId,omitempty"` // Hashed provider subject, unique when set
	HashedPassword string    `bson:"hashedPassword"`       // bcrypt hash, empty for OAuth-only accounts
	AvatarURL      string    `bson:"avatarUrl,omitempty"`  // Profile picture URL
	MemberSince    time.Time `bson:"memberSince"`          // Account creation timestamp
}

func userDocumentToModel(doc *UserDocument) (*models.User, error) {
	userID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %v", err)
	}

	return &models.User{
		ID:             userID,
		Username:       doc.Username,
		ExternalID:     doc.ExternalID,
		HashedPassword: doc.HashedPassword,
		AvatarURL:      doc.AvatarURL,
		MemberSince:    doc.MemberSince,
	}, nil
}

// SaveUser creates or updates a user in MongoDB. The unique indexes on
// username and externalId turn a lost insert race into a duplicate-key
// error, which is surfaced as DUPLICATE_USERNAME.
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	doc := UserDocument{
		ID:             user.ID.String(),
		Username:       user.Username,
		ExternalID:     user.ExternalID,
		HashedPassword: user.HashedPassword,
		AvatarURL:      user.AvatarURL,
		MemberSince:    user.MemberSince,
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": user.ID.String()}
	update := bson.M{"$set": doc}

	_, err := m.Users.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewDuplicateUsernameError(user.Username)
	}
	return err
}

// GetUser retrieves a user from MongoDB by their ID
func (m *MongoDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc UserDocument

	err := m.Users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, err
	}

	return userDocumentToModel(&doc)
}

// GetUserByUsername retrieves a user from MongoDB by their username
func (m *MongoDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var doc UserDocument

	err := m.Users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewUserNotFoundError(username)
	}
	if err != nil {
		return nil, err
	}

	return userDocumentToModel(&doc)
}

// GetUserByExternalID retrieves a user by their hashed provider subject
func (m *MongoDB) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var doc UserDocument

	err := m.Users.FindOne(ctx, bson.M{"externalId": externalID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, err
	}

	return userDocumentToModel(&doc)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Accounts created through the OAuth
// callback have no password hash and carry the hashed provider subject in
// ExternalID instead.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	ExternalID     string    `json:"-"` // hashed provider subject, empty for local accounts
	HashedPassword string    `json:"-"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	MemberSince    time.Time `json:"memberSince"`
}

// Post is a microblog entry with its append-only comment thread.
type Post struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	AuthorID       uuid.UUID `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	CreatedAt      time.Time `json:"createdAt"`
	Likes          int       `json:"likes"`
	Comments       []Comment `json:"comments"`
}

// Comment on a post. Comments are append-only and never edited or deleted.
type Comment struct {
	ID             uuid.UUID `json:"id"`
	AuthorID       uuid.UUID `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Session is the server-side record behind a session cookie. The ID is an
// opaque token generated server-side and is the only thing the client holds.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	LoggedIn  bool      `json:"loggedIn"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its TTL.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

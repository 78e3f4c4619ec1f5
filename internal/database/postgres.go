// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"lilypad/internal/models"
	"lilypad/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresDB implements Store on top of PostgreSQL via sqlx. Uniqueness of
// usernames and external IDs is enforced by table constraints, so a racing
// insert loses with a unique-violation instead of creating a duplicate.
type PostgresDB struct {
	db *sqlx.DB
}

func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Successfully connected to PostgreSQL!")

	p := &PostgresDB{db: db}
	if err := p.InitializeTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %v", err)
	}
	return p, nil
}

// InitializeTables creates the schema if it does not exist yet
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		external_id TEXT UNIQUE,
		hashed_password TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		member_since TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author_id UUID NOT NULL REFERENCES users(id),
		author_username TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS comments (
		id UUID PRIMARY KEY,
		post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id UUID NOT NULL,
		author_username TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments (post_id);
	`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

type userRow struct {
	ID             string         `db:"id"`
	Username       string         `db:"username"`
	ExternalID     sql.NullString `db:"external_id"`
	HashedPassword string         `db:"hashed_password"`
	AvatarURL      string         `db:"avatar_url"`
	MemberSince    time.Time      `db:"member_since"`
}

type postRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Content        string    `db:"content"`
	AuthorID       string    `db:"author_id"`
	AuthorUsername string    `db:"author_username"`
	CreatedAt      time.Time `db:"created_at"`
	Likes          int       `db:"likes"`
}

type commentRow struct {
	ID             string    `db:"id"`
	PostID         string    `db:"post_id"`
	AuthorID       string    `db:"author_id"`
	AuthorUsername string    `db:"author_username"`
	Text           string    `db:"text"`
	CreatedAt      time.Time `db:"created_at"`
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func userRowToModel(row *userRow) (*models.User, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %v", err)
	}
	return &models.User{
		ID:             id,
		Username:       row.Username,
		ExternalID:     row.ExternalID.String,
		HashedPassword: row.HashedPassword,
		AvatarURL:      row.AvatarURL,
		MemberSince:    row.MemberSince,
	}, nil
}

func (p *PostgresDB) SaveUser(ctx context.Context, user *models.User) error {
	externalID := sql.NullString{String: user.ExternalID, Valid: user.ExternalID != ""}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, username, external_id, hashed_password, avatar_url, member_since)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			external_id = EXCLUDED.external_id,
			hashed_password = EXCLUDED.hashed_password,
			avatar_url = EXCLUDED.avatar_url`,
		user.ID.String(), user.Username, externalID, user.HashedPassword,
		user.AvatarURL, user.MemberSince)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewDuplicateUsernameError(user.Username)
		}
		return err
	}
	return nil
}

func (p *PostgresDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var row userRow
	err := p.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id.String())
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, err
	}
	return userRowToModel(&row)
}

func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	err := p.db.GetContext(ctx, &row, `SELECT * FROM users WHERE username = $1`, username)
	if err == sql.ErrNoRows {
		return nil, utils.NewUserNotFoundError(username)
	}
	if err != nil {
		return nil, err
	}
	return userRowToModel(&row)
}

func (p *PostgresDB) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var row userRow
	err := p.db.GetContext(ctx, &row, `SELECT * FROM users WHERE external_id = $1`, externalID)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found", err)
	}
	if err != nil {
		return nil, err
	}
	return userRowToModel(&row)
}

func (p *PostgresDB) SavePost(ctx context.Context, post *models.Post) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, content, author_id, author_username, created_at, likes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content`,
		post.ID.String(), post.Title, post.Content, post.AuthorID.String(),
		post.AuthorUsername, post.CreatedAt, post.Likes)
	return err
}

func (p *PostgresDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var row postRow
	err := p.db.GetContext(ctx, &row, `SELECT * FROM posts WHERE id = $1`, id.String())
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return nil, err
	}

	post, err := p.postRowToModel(&row)
	if err != nil {
		return nil, err
	}
	if err := p.loadComments(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (p *PostgresDB) GetRecentPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	query := `SELECT * FROM posts ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []postRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return p.postRowsToModels(ctx, rows)
}

func (p *PostgresDB) GetPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Post, error) {
	var rows []postRow
	err := p.db.SelectContext(ctx, &rows,
		`SELECT * FROM posts WHERE author_id = $1 ORDER BY created_at DESC`,
		authorID.String())
	if err != nil {
		return nil, err
	}
	return p.postRowsToModels(ctx, rows)
}

func (p *PostgresDB) postRowToModel(row *postRow) (*models.Post, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID in database: %v", err)
	}
	authorID, err := uuid.Parse(row.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID in database: %v", err)
	}
	return &models.Post{
		ID:             id,
		Title:          row.Title,
		Content:        row.Content,
		AuthorID:       authorID,
		AuthorUsername: row.AuthorUsername,
		CreatedAt:      row.CreatedAt,
		Likes:          row.Likes,
		Comments:       []models.Comment{},
	}, nil
}

func (p *PostgresDB) postRowsToModels(ctx context.Context, rows []postRow) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(rows))
	for i := range rows {
		post, err := p.postRowToModel(&rows[i])
		if err != nil {
			return nil, err
		}
		if err := p.loadComments(ctx, post); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (p *PostgresDB) loadComments(ctx context.Context, post *models.Post) error {
	var rows []commentRow
	err := p.db.SelectContext(ctx, &rows,
		`SELECT * FROM comments WHERE post_id = $1 ORDER BY created_at ASC`,
		post.ID.String())
	if err != nil {
		return err
	}

	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return fmt.Errorf("invalid comment ID in database: %v", err)
		}
		authorID, err := uuid.Parse(row.AuthorID)
		if err != nil {
			return fmt.Errorf("invalid comment author ID in database: %v", err)
		}
		post.Comments = append(post.Comments, models.Comment{
			ID:             id,
			AuthorID:       authorID,
			AuthorUsername: row.AuthorUsername,
			Text:           row.Text,
			CreatedAt:      row.CreatedAt,
		})
	}
	return nil
}

// IncrementLikes updates the counter in a single statement so concurrent
// likes serialize inside the database instead of read-modify-write races.
func (p *PostgresDB) IncrementLikes(ctx context.Context, postID uuid.UUID) (int, error) {
	var likes int
	err := p.db.GetContext(ctx, &likes,
		`UPDATE posts SET likes = likes + 1 WHERE id = $1 RETURNING likes`,
		postID.String())
	if err == sql.ErrNoRows {
		return 0, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return 0, err
	}
	return likes, nil
}

func (p *PostgresDB) AddComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) error {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, author_id, author_username, text, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM posts WHERE id = $2)`,
		comment.ID.String(), postID.String(), comment.AuthorID.String(),
		comment.AuthorUsername, comment.Text, comment.CreatedAt)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return nil
}

// DeletePost deletes the post only when the author matches; comments go with
// it via ON DELETE CASCADE.
func (p *PostgresDB) DeletePost(ctx context.Context, postID uuid.UUID, authorID uuid.UUID) error {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1 AND author_id = $2`,
		postID.String(), authorID.String())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := p.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID.String()); err != nil {
			return err
		}
		if !exists {
			return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
		}
		return utils.NewForbiddenError("only the author can delete a post")
	}
	return nil
}

func (p *PostgresDB) Close(ctx context.Context) error {
	return p.db.Close()
}

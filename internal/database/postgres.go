// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDB talks to a Postgres database directly, for deployments that
// do not go through a Supabase project.
type PostgresDB struct {
	DB     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger = utils.OrNop(logger)
	logger.Info("connected to PostgreSQL")

	return &PostgresDB{DB: db, logger: logger}, nil
}

// NewPostgresDBFromConn wraps an existing connection.
func NewPostgresDBFromConn(db *sqlx.DB, logger *zap.Logger) *PostgresDB {
	return &PostgresDB{DB: db, logger: utils.OrNop(logger)}
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	p.logger.Info("closing PostgreSQL connection")
	return p.DB.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return Classify(p.DB.PingContext(ctx), "remote store unreachable")
}

// InitializeTables creates all necessary tables if they don't exist.
// likes carries no check constraint: the counter is written as an absolute
// value and may legitimately go negative.
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	statements := []struct {
		table string
		ddl   string
	}{
		{"profiles", `
			CREATE TABLE IF NOT EXISTS profiles (
				id UUID PRIMARY KEY,
				username TEXT NOT NULL,
				avatar_url TEXT,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				content TEXT,
				image_url TEXT,
				likes INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id UUID PRIMARY KEY,
				post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"post_likes", `
			CREATE TABLE IF NOT EXISTS post_likes (
				post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
				PRIMARY KEY (post_id, user_id)
			)`},
		{"comments index", `CREATE INDEX IF NOT EXISTS comments_post_created_idx ON comments (post_id, created_at DESC)`},
	}

	for _, stmt := range statements {
		if _, err := p.DB.ExecContext(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.table, err)
		}
	}
	return nil
}

func (p *PostgresDB) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT id, username, avatar_url, created_at, updated_at FROM profiles WHERE id = $1`
	var profile models.Profile
	err := p.DB.GetContext(ctx, &profile, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Classify(err, "failed to read profile")
	}
	return &profile, nil
}

func (p *PostgresDB) UpsertProfile(ctx context.Context, profile models.Profile) error {
	query := `
		INSERT INTO profiles (id, username, created_at, updated_at)
		VALUES (:id, :username, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			updated_at = EXCLUDED.updated_at`
	_, err := p.DB.NamedExecContext(ctx, query, profile)
	return Classify(err, "failed to upsert profile")
}

func (p *PostgresDB) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error {
	query := `UPDATE profiles SET username = $1, avatar_url = $2, updated_at = $3 WHERE id = $4`
	result, err := p.DB.ExecContext(ctx, query, update.Username, update.AvatarURL, update.UpdatedAt, id)
	if err != nil {
		return Classify(err, "failed to update profile")
	}
	return requireRow(result, "profile not found")
}

func (p *PostgresDB) GetUsernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	var rows []struct {
		ID       uuid.UUID `db:"id"`
		Username string    `db:"username"`
	}
	query := `SELECT id, username FROM profiles WHERE id = ANY($1::uuid[])`
	if err := p.DB.SelectContext(ctx, &rows, query, pq.Array(values)); err != nil {
		return nil, Classify(err, "failed to read usernames")
	}
	for _, row := range rows {
		names[row.ID] = row.Username
	}
	return names, nil
}

const postSelect = `
	SELECT p.id, p.user_id, p.title,
		COALESCE(p.content, '') AS content,
		COALESCE(p.image_url, '') AS image_url,
		p.likes, p.created_at,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count
	FROM posts p`

func (p *PostgresDB) ListPosts(ctx context.Context, query models.PostQuery) ([]models.Post, error) {
	var (
		sb    strings.Builder
		where []string
		args  []interface{}
	)
	sb.WriteString(postSelect)

	if query.AuthorID != nil {
		args = append(args, *query.AuthorID)
		where = append(where, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if query.Filter != "" {
		args = append(args, "%"+query.Filter+"%")
		where = append(where, fmt.Sprintf("p.title ILIKE $%d", len(args)))
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	switch query.Sort {
	case models.SortLikes:
		sb.WriteString(" ORDER BY p.likes ASC NULLS LAST")
	case models.SortLikesDesc:
		sb.WriteString(" ORDER BY p.likes DESC NULLS LAST")
	default:
		sb.WriteString(" ORDER BY p.created_at DESC NULLS LAST")
	}

	posts := []models.Post{}
	if err := p.DB.SelectContext(ctx, &posts, sb.String(), args...); err != nil {
		return nil, Classify(err, "failed to list posts")
	}
	return posts, nil
}

func (p *PostgresDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := p.DB.GetContext(ctx, &post, postSelect+` WHERE p.id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "post not found", err)
		}
		return nil, Classify(err, "failed to read post")
	}
	return &post, nil
}

func (p *PostgresDB) InsertPost(ctx context.Context, post models.Post) (*models.Post, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO posts (id, user_id, title, content, image_url, likes, created_at)
		VALUES (:id, :user_id, :title, :content, :image_url, :likes, :created_at)`
	if _, err := p.DB.NamedExecContext(ctx, query, post); err != nil {
		return nil, Classify(err, "failed to create post")
	}
	post.CommentCount = 0
	return &post, nil
}

func (p *PostgresDB) UpdatePost(ctx context.Context, id uuid.UUID, input models.PostInput) (*models.Post, error) {
	query := `UPDATE posts SET title = $1, content = $2, image_url = $3 WHERE id = $4`
	result, err := p.DB.ExecContext(ctx, query, input.Title, input.Content, input.ImageURL, id)
	if err != nil {
		return nil, Classify(err, "failed to update post")
	}
	if err := requireRow(result, "post not found"); err != nil {
		return nil, err
	}
	return p.GetPost(ctx, id)
}

func (p *PostgresDB) SetPostLikes(ctx context.Context, id uuid.UUID, likes int) (*models.Post, error) {
	result, err := p.DB.ExecContext(ctx, `UPDATE posts SET likes = $1 WHERE id = $2`, likes, id)
	if err != nil {
		return nil, Classify(err, "failed to update like count")
	}
	if err := requireRow(result, "post not found"); err != nil {
		return nil, err
	}
	return p.GetPost(ctx, id)
}

func (p *PostgresDB) DeletePost(ctx context.Context, id uuid.UUID) error {
	result, err := p.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return Classify(err, "failed to delete post")
	}
	return requireRow(result, "post not found")
}

func (p *PostgresDB) InsertLike(ctx context.Context, like models.PostLike) error {
	_, err := p.DB.NamedExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id) VALUES (:post_id, :user_id)`, like)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return utils.NewAppError(utils.ErrConflict, "post already liked", err)
		}
		return Classify(err, "failed to record like")
	}
	return nil
}

func (p *PostgresDB) DeleteLike(ctx context.Context, like models.PostLike) error {
	_, err := p.DB.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, like.PostID, like.UserID)
	return Classify(err, "failed to remove like")
}

func (p *PostgresDB) LikedPostIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := p.DB.SelectContext(ctx, &ids, `SELECT post_id FROM post_likes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, Classify(err, "failed to read liked posts")
	}
	return ids, nil
}

func (p *PostgresDB) HasLiked(ctx context.Context, like models.PostLike) (bool, error) {
	var exists bool
	err := p.DB.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM post_likes WHERE post_id = $1 AND user_id = $2)`, like.PostID, like.UserID)
	if err != nil {
		return false, Classify(err, "failed to check like status")
	}
	return exists, nil
}

func (p *PostgresDB) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	comments := []models.Comment{}
	query := `
		SELECT id, post_id, user_id, content, created_at
		FROM comments WHERE post_id = $1
		ORDER BY created_at DESC`
	if err := p.DB.SelectContext(ctx, &comments, query, postID); err != nil {
		return nil, Classify(err, "failed to load comments")
	}
	return comments, nil
}

func (p *PostgresDB) InsertComment(ctx context.Context, comment models.Comment) (*models.Comment, error) {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO comments (id, post_id, user_id, content, created_at)
		VALUES (:id, :post_id, :user_id, :content, :created_at)`
	if _, err := p.DB.NamedExecContext(ctx, query, comment); err != nil {
		return nil, Classify(err, "failed to add comment")
	}
	return &comment, nil
}

func requireRow(result sql.Result, notFound string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return Classify(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return utils.NewAppError(utils.ErrNotFound, notFound, nil)
	}
	return nil
}

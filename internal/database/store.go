package database

import (
	"context"

	"github.com/kevinye7/PokeHub/internal/models"

	"github.com/google/uuid"
)

// ProfileStore reads and writes the profiles table.
type ProfileStore interface {
	// GetProfile returns nil, nil when no row exists for id.
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	// UpsertProfile writes id, username and timestamps. On an existing row
	// only username and updated_at change; avatar_url is never written.
	UpsertProfile(ctx context.Context, profile models.Profile) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) error
	GetUsernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// PostStore reads and writes the posts table. Reads fill CommentCount from
// the comments relation.
type PostStore interface {
	ListPosts(ctx context.Context, query models.PostQuery) ([]models.Post, error)
	// GetPost fails with NOT_FOUND for a missing post, never nil, nil.
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	InsertPost(ctx context.Context, post models.Post) (*models.Post, error)
	UpdatePost(ctx context.Context, id uuid.UUID, input models.PostInput) (*models.Post, error)
	// SetPostLikes writes an absolute counter value. It is not an increment.
	SetPostLikes(ctx context.Context, id uuid.UUID, likes int) (*models.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
}

// LikeStore reads and writes the post_likes junction table.
type LikeStore interface {
	InsertLike(ctx context.Context, like models.PostLike) error
	// DeleteLike succeeds when no matching row exists.
	DeleteLike(ctx context.Context, like models.PostLike) error
	LikedPostIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	HasLiked(ctx context.Context, like models.PostLike) (bool, error)
}

// CommentStore reads and appends to the comments table.
type CommentStore interface {
	// ListComments returns the post's comments newest first.
	ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	InsertComment(ctx context.Context, comment models.Comment) (*models.Comment, error)
}

// Store is the full remote store contract. Every error it returns is an
// *utils.AppError classified by kind.
type Store interface {
	ProfileStore
	PostStore
	LikeStore
	CommentStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Likes     int       `json:"likes" db:"likes"` // denormalized, written last-writer-wins
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Derived from the comments relation at read time, never stored.
	CommentCount int `json:"comment_count" db:"comment_count"`
}

// PostInput is the author-editable part of a post.
type PostInput struct {
	Title    string `json:"title" validate:"required,max=300"`
	Content  string `json:"content" validate:"max=10000"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type SortKey string

const (
	SortNewest    SortKey = "newest"     // created_at descending
	SortLikes     SortKey = "likes"      // likes ascending
	SortLikesDesc SortKey = "likes_desc" // likes descending
)

// ParseSortKey accepts the public sort names. An empty string selects
// SortNewest. "created_at" is accepted as an alias for SortNewest.
func ParseSortKey(s string) (SortKey, error) {
	switch s {
	case "", string(SortNewest), "created_at":
		return SortNewest, nil
	case string(SortLikes):
		return SortLikes, nil
	case string(SortLikesDesc):
		return SortLikesDesc, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// PostQuery selects the posts of a full feed load.
type PostQuery struct {
	Sort     SortKey    `json:"sort"`
	Filter   string     `json:"filter,omitempty"` // case-insensitive title substring
	AuthorID *uuid.UUID `json:"author_id,omitempty"`
}

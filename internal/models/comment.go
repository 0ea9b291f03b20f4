package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is append-only from the client's point of view.
type Comment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PostID    uuid.UUID `json:"post_id" db:"post_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PostLike is a row of the post_likes junction table, unique per pair.
type PostLike struct {
	PostID uuid.UUID `json:"post_id" db:"post_id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`
}

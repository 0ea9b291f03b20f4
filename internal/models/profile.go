package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultUsername is used when no email local-part is available.
const DefaultUsername = "trainer"

// Identity is the authenticated user as issued by the identity service.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Profile is the public record kept for every identity.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	AvatarURL *string   `json:"avatar_url" db:"avatar_url"` // storage path inside the avatars bucket
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Username  string    `json:"username" db:"username"`
	AvatarURL *string   `json:"avatar_url" db:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UsernameFromEmail derives a display name from an email address or a
// plain name. "alice@x.com" becomes "alice"; an empty input becomes
// DefaultUsername.
func UsernameFromEmail(s string) string {
	name := strings.TrimSpace(s)
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return DefaultUsername
	}
	return name
}

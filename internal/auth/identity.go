package auth

import (
	"context"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
)

type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Session is an authenticated session issued by the identity service.
type Session struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Identity     models.Identity `json:"user"`
}

// Expired reports whether the access token is past its expiry. A zero
// ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Event is delivered to subscribers on every session transition. Session
// is nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

type SignUpResult struct {
	Identity *models.Identity
	Session  *Session
	// Set when the service expects an email confirmation before the
	// account can sign in.
	ConfirmationPending bool
}

// Service is the identity service as the client sees it.
type Service interface {
	// CurrentSession returns nil, nil when nobody is signed in.
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	// Subscribe registers fn for every later event. The returned function
	// removes the subscription and is safe to call more than once.
	Subscribe(fn func(Event)) (unsubscribe func())
}

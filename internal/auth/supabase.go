package auth

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap"
)

// SessionBinder receives the active session so that other clients sharing
// the project (rest, storage) send the user's token. *supabase.Client
// satisfies it.
type SessionBinder interface {
	UpdateAuthSession(session types.Session)
}

type SupabaseIdentityOptions struct {
	// AnonKey is re-bound on sign-out.
	AnonKey string
	// JWTSecret, when set, verifies restored access tokens locally instead
	// of asking the service.
	JWTSecret string
}

// SupabaseIdentity implements Service on top of Supabase GoTrue.
type SupabaseIdentity struct {
	auth    gotrue.Client
	binder  SessionBinder
	options SupabaseIdentityOptions
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	session *Session
	events  utils.Broadcaster[Event]
}

// NewSupabaseIdentity wraps an unauthenticated GoTrue client. binder may be nil.
func NewSupabaseIdentity(auth gotrue.Client, binder SessionBinder, options SupabaseIdentityOptions, logger *zap.Logger) *SupabaseIdentity {
	return &SupabaseIdentity{
		auth:    auth,
		binder:  binder,
		options: options,
		logger:  utils.OrNop(logger),
		now:     time.Now,
	}
}

func (s *SupabaseIdentity) Subscribe(fn func(Event)) func() {
	return s.events.Subscribe(fn)
}

// CurrentSession returns the active session, refreshing it first when the
// access token has expired. A failed refresh signs the user out.
func (s *SupabaseIdentity) CurrentSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyAuthError(err, "session read cancelled")
	}

	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	if !current.Expired(s.now()) {
		copied := *current
		return &copied, nil
	}

	refreshed, err := s.refresh(current.RefreshToken)
	if err != nil {
		s.logger.Warn("session refresh failed, signing out",
			zap.String("user_id", current.Identity.ID.String()),
			zap.Error(err))
		s.clear()
		s.events.Publish(Event{Type: EventSignedOut})
		return nil, err
	}
	s.install(refreshed)
	s.events.Publish(Event{Type: EventTokenRefreshed, Session: refreshed})
	copied := *refreshed
	return &copied, nil
}

func (s *SupabaseIdentity) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyAuthError(err, "sign-in cancelled")
	}
	resp, err := s.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, classifyAuthError(err, "sign-in failed")
	}

	session := s.fromToken(resp.Session)
	s.install(session)
	s.logger.Info("signed in", zap.String("user_id", session.Identity.ID.String()))
	s.events.Publish(Event{Type: EventSignedIn, Session: session})
	copied := *session
	return &copied, nil
}

func (s *SupabaseIdentity) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyAuthError(err, "sign-up cancelled")
	}
	resp, err := s.auth.Signup(types.SignupRequest{Email: email, Password: password})
	if err != nil {
		return nil, classifyAuthError(err, "sign-up failed")
	}

	// An existing or unconfirmed address comes back without identities.
	if resp.User.ID == uuid.Nil || len(resp.User.Identities) == 0 {
		return &SignUpResult{ConfirmationPending: true}, nil
	}

	identity := models.Identity{ID: resp.User.ID, Email: resp.User.Email}
	result := &SignUpResult{Identity: &identity}
	if resp.Session.AccessToken == "" {
		result.ConfirmationPending = true
		return result, nil
	}

	session := s.fromToken(resp.Session)
	s.install(session)
	s.events.Publish(Event{Type: EventSignedIn, Session: session})
	copied := *session
	result.Session = &copied
	return result, nil
}

func (s *SupabaseIdentity) SignOut(ctx context.Context) error {
	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current == nil {
		return nil
	}

	if err := ctx.Err(); err == nil {
		// The local session ends even when revocation fails.
		if err := s.auth.WithToken(current.AccessToken).Logout(); err != nil {
			s.logger.Warn("remote sign-out failed", zap.Error(err))
		}
	}
	s.clear()
	s.logger.Info("signed out", zap.String("user_id", current.Identity.ID.String()))
	s.events.Publish(Event{Type: EventSignedOut})
	return nil
}

// Restore installs a persisted session without emitting an event. The
// access token is verified locally when a JWT secret is configured and by
// the service otherwise. An unusable access token falls back to the
// refresh token.
func (s *SupabaseIdentity) Restore(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyAuthError(err, "session restore cancelled")
	}

	session, err := s.verify(accessToken)
	if err != nil {
		if refreshToken == "" {
			return nil, err
		}
		session, err = s.refresh(refreshToken)
		if err != nil {
			return nil, err
		}
	} else {
		session.RefreshToken = refreshToken
	}
	s.install(session)
	copied := *session
	return &copied, nil
}

func (s *SupabaseIdentity) verify(accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "no access token", nil)
	}
	if s.options.JWTSecret != "" {
		claims, err := ParseAccessToken(accessToken, []byte(s.options.JWTSecret))
		if err != nil {
			return nil, err
		}
		identity, err := claims.Identity()
		if err != nil {
			return nil, err
		}
		session := &Session{AccessToken: accessToken, Identity: identity}
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
		return session, nil
	}

	user, err := s.auth.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, classifyAuthError(err, "access token rejected")
	}
	session := &Session{
		AccessToken: accessToken,
		Identity:    models.Identity{ID: user.ID, Email: user.Email},
	}
	// expiry only, the service already vouched for the token
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err == nil && claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (s *SupabaseIdentity) refresh(refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "session expired", nil)
	}
	resp, err := s.auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, classifyAuthError(err, "session refresh failed")
	}
	return s.fromToken(resp.Session), nil
}

func (s *SupabaseIdentity) install(session *Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	if s.binder != nil {
		s.binder.UpdateAuthSession(types.Session{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
		})
	}
}

func (s *SupabaseIdentity) clear() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	if s.binder != nil && s.options.AnonKey != "" {
		s.binder.UpdateAuthSession(types.Session{AccessToken: s.options.AnonKey})
	}
}

func (s *SupabaseIdentity) fromToken(token types.Session) *Session {
	session := &Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Identity:     models.Identity{ID: token.User.ID, Email: token.User.Email},
	}
	switch {
	case token.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(token.ExpiresAt, 0)
	case token.ExpiresIn > 0:
		session.ExpiresAt = s.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return session
}

// gotrue-go reports non-2xx responses as "response status code <n>: <body>".
var authStatusPattern = regexp.MustCompile(`response status code (\d+)`)

func classifyAuthError(err error, message string) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "already registered"):
		return utils.NewAppError(utils.ErrConflict, "This email is already registered. Please login instead.", err)
	case strings.Contains(lower, "invalid login credentials"), strings.Contains(lower, "invalid_grant"):
		return utils.NewAppError(utils.ErrInvalidCredentials, "Invalid email or password", err)
	case strings.Contains(lower, "email not confirmed"):
		return utils.NewAppError(utils.ErrConfirmationPending, "Please confirm your email before signing in", err)
	case errors.Is(err, types.ErrInvalidTokenRequest):
		return utils.NewValidationError("email and password are required")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return utils.NewAppError(utils.ErrRemoteUnavailable, message, err)
	}

	if m := authStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		switch {
		case status >= 500 || status == 429:
			return utils.NewAppError(utils.ErrRemoteUnavailable, message, err)
		case status == 401 || status == 403:
			return utils.NewAppError(utils.ErrInvalidToken, message, err)
		case status == 422:
			return utils.NewAppError(utils.ErrValidation, message, err)
		}
		return utils.NewAppError(utils.ErrRemote, message, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return utils.NewAppError(utils.ErrRemoteUnavailable, message, err)
	}
	return utils.NewAppError(utils.ErrRemote, message, err)
}

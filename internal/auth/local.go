package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const localTokenTTL = time.Hour

type localAccount struct {
	identity     models.Identity
	passwordHash []byte
}

// LocalIdentity is an in-process identity service for offline runs and
// tests. Accounts live only as long as the process.
type LocalIdentity struct {
	secret []byte
	cost   int
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	accounts map[string]localAccount // by lowercased email
	session  *Session
	events   utils.Broadcaster[Event]
}

func NewLocalIdentity(secret string, logger *zap.Logger) *LocalIdentity {
	if secret == "" {
		secret = uuid.NewString()
	}
	return &LocalIdentity{
		secret:   []byte(secret),
		cost:     bcrypt.DefaultCost,
		logger:   utils.OrNop(logger),
		now:      time.Now,
		accounts: make(map[string]localAccount),
	}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (l *LocalIdentity) WithHashCost(cost int) *LocalIdentity {
	l.cost = cost
	return l
}

func (l *LocalIdentity) Subscribe(fn func(Event)) func() {
	return l.events.Subscribe(fn)
}

func (l *LocalIdentity) CurrentSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrRemoteUnavailable, "session read cancelled", err)
	}
	l.mu.Lock()
	current := l.session
	if current == nil {
		l.mu.Unlock()
		return nil, nil
	}
	if !current.Expired(l.now()) {
		copied := *current
		l.mu.Unlock()
		return &copied, nil
	}

	session, err := l.issue(current.Identity)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.session = session
	l.mu.Unlock()

	l.events.Publish(Event{Type: EventTokenRefreshed, Session: session})
	copied := *session
	return &copied, nil
}

func (l *LocalIdentity) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, utils.NewValidationError("email and password are required")
	}
	key := strings.ToLower(email)

	l.mu.Lock()
	if _, exists := l.accounts[key]; exists {
		l.mu.Unlock()
		return nil, utils.NewAppError(utils.ErrConflict, "This email is already registered. Please login instead.", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		l.mu.Unlock()
		return nil, utils.NewValidationError(err.Error())
	}
	identity := models.Identity{ID: uuid.New(), Email: email}
	l.accounts[key] = localAccount{identity: identity, passwordHash: hash}

	session, err := l.issue(identity)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.session = session
	l.mu.Unlock()

	l.logger.Info("local account created", zap.String("user_id", identity.ID.String()))
	l.events.Publish(Event{Type: EventSignedIn, Session: session})
	copied := *session
	return &SignUpResult{Identity: &identity, Session: &copied}, nil
}

func (l *LocalIdentity) SignIn(ctx context.Context, email, password string) (*Session, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	account, ok := l.accounts[key]
	if !ok || bcrypt.CompareHashAndPassword(account.passwordHash, []byte(password)) != nil {
		l.mu.Unlock()
		return nil, utils.NewAppError(utils.ErrInvalidCredentials, "Invalid email or password", nil)
	}
	session, err := l.issue(account.identity)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.session = session
	l.mu.Unlock()

	l.events.Publish(Event{Type: EventSignedIn, Session: session})
	copied := *session
	return &copied, nil
}

func (l *LocalIdentity) SignOut(ctx context.Context) error {
	l.mu.Lock()
	wasSignedIn := l.session != nil
	l.session = nil
	l.mu.Unlock()

	if wasSignedIn {
		l.events.Publish(Event{Type: EventSignedOut})
	}
	return nil
}

// Verify parses an access token issued by this service.
func (l *LocalIdentity) Verify(accessToken string) (models.Identity, error) {
	claims, err := ParseAccessToken(accessToken, l.secret)
	if err != nil {
		return models.Identity{}, err
	}
	return claims.Identity()
}

// issue signs a fresh session. Callers hold l.mu.
func (l *LocalIdentity) issue(identity models.Identity) (*Session, error) {
	token, expiresAt, err := IssueAccessToken(identity, l.secret, localTokenTTL, l.now())
	if err != nil {
		return nil, utils.NewAppError(utils.ErrRemote, "failed to sign access token", err)
	}
	return &Session{
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expiresAt,
		Identity:     identity,
	}, nil
}

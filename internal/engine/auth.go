package engine

import (
	"context"
	"strings"
	"time"

	"github.com/kevinye7/PokeHub/internal/auth"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"go.uber.org/zap"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SignUp registers an account. When the service returns an identity the
// profile row is created right away, named after the email local-part.
// A pending confirmation leaves profiles untouched.
func (e *Engine) SignUp(ctx context.Context, creds Credentials) (result *auth.SignUpResult, err error) {
	start := time.Now()
	defer func() { e.observe("sign_up", start, err) }()

	creds.Email = strings.TrimSpace(creds.Email)
	if err := utils.ValidateStruct(creds); err != nil {
		return nil, err
	}

	result, err = e.identity.SignUp(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	if result.Identity == nil {
		e.logger.Info("sign-up awaiting email confirmation")
		return result, nil
	}

	if _, err := e.provisioner.Ensure(ctx, result.Identity.ID, creds.Email); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) SignIn(ctx context.Context, creds Credentials) (identity *models.Identity, err error) {
	start := time.Now()
	defer func() { e.observe("sign_in", start, err) }()

	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, utils.NewValidationError("email and password are required")
	}

	session, err := e.identity.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	e.logger.Info("signed in", zap.String("user_id", session.Identity.ID.String()))
	return &session.Identity, nil
}

// SignOut ends the session. The liked set is cleared once the tracker sees
// the sign-out.
func (e *Engine) SignOut(ctx context.Context) error {
	return e.identity.SignOut(ctx)
}

// Session returns a copy of the tracked session, or nil when signed out.
func (e *Engine) Session() *auth.Session {
	return e.tracker.Session()
}

package auth

import (
	"fmt"
	"time"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the subset of an access token's claims the client reads. The
// subject is the identity id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the identity named by the token subject.
func (c *Claims) Identity() (models.Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Identity{}, utils.NewAppError(utils.ErrInvalidToken, "token subject is not an identity id", err)
	}
	return models.Identity{ID: id, Email: c.Email}, nil
}

// IssueAccessToken signs an HS256 access token for identity.
func IssueAccessToken(identity models.Identity, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "pokehub",
			Subject:   identity.ID.String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseAccessToken verifies an HMAC-signed access token and returns its
// claims. Expired or malformed tokens fail with ErrInvalidToken.
func ParseAccessToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid access token", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid access token", nil)
}

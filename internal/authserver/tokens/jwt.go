// Package tokens mints and verifies the signed access and refresh tokens
// handed out by the auth server.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

// Identity is the user snapshot embedded into access tokens.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Role     string
}

// Claims is the payload of both token kinds. Refresh tokens carry only
// UserID and Type besides the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Type     Type   `json:"type"`
}

// Identity returns the user snapshot carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Email: c.Email, Role: c.Role}
}

// Codec signs tokens with a shared HMAC secret.
type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a codec for the named algorithm. Only HMAC algorithms
// (HS256, HS384, HS512) are accepted.
func NewCodec(secret []byte, algorithm string, accessTTL, refreshTTL time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokens: empty secret")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("tokens: unsupported algorithm %q", algorithm)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("tokens: lifetimes must be positive")
	}

	c := &Codec{
		secret:     secret,
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// AccessTTL is the lifetime of access tokens (and of sessions).
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the lifetime of refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess mints an access token for id.
func (c *Codec) IssueAccess(id Identity) (string, error) {
	return c.issue(Claims{
		UserID:   id.UserID,
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
		Type:     Access,
	}, c.accessTTL)
}

// IssueRefresh mints a refresh token for userID.
func (c *Codec) IssueRefresh(userID string) (string, error) {
	return c.issue(Claims{UserID: userID, Type: Refresh}, c.refreshTTL)
}

func (c *Codec) issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.UserID == "" {
		return "", fmt.Errorf("issue %s token: %w: empty user id", claims.Type, common.ErrValidation)
	}

	jti, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", claims.Type, err)
	}

	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	tokenString, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", claims.Type, err)
	}

	return tokenString, nil
}

// Verify checks signature, algorithm, expiry and token type. Every failure
// wraps common.ErrInvalidToken.
func (c *Codec) Verify(tokenString string, want Type) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", common.ErrInvalidToken, want, claims.Type)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", common.ErrInvalidToken)
	}

	return claims, nil
}

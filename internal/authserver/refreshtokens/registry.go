// Package refreshtokens tracks the single live refresh token of each user.
// Issuing a new token overwrites the previous one, which rotates it out.
package refreshtokens

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kvstore"
)

// Verifier checks the signature, expiry and type of a token.
type Verifier interface {
	Verify(token string, want tokens.Type) (*tokens.Claims, error)
}

// Registry stores the current refresh token string verbatim under
// <prefix><user_id>.
type Registry struct {
	kv     kvstore.Store
	codec  Verifier
	prefix string
	ttl    time.Duration
}

func NewRegistry(kv kvstore.Store, codec Verifier, prefix string, ttl time.Duration) *Registry {
	return &Registry{kv: kv, codec: codec, prefix: prefix, ttl: ttl}
}

func (r *Registry) key(userID string) string { return r.prefix + userID }

// Put unconditionally replaces the registered token of userID.
func (r *Registry) Put(ctx context.Context, userID, token string) error {
	if err := r.kv.Set(ctx, r.key(userID), []byte(token), r.ttl); err != nil {
		return fmt.Errorf("put refresh token: %w", err)
	}
	return nil
}

// Get returns the registered token of userID or common.ErrNotFound.
func (r *Registry) Get(ctx context.Context, userID string) (string, error) {
	raw, err := r.kv.Get(ctx, r.key(userID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("get refresh token: %w", err)
	}
	return string(raw), nil
}

// Delete revokes the registered token. A missing entry is not an error.
func (r *Registry) Delete(ctx context.Context, userID string) error {
	if err := r.kv.Delete(ctx, r.key(userID)); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// VerifyRefresh returns the owner of token if it is a valid refresh token
// and exactly the one currently registered for that user.
func (r *Registry) VerifyRefresh(ctx context.Context, token string) (string, error) {
	claims, err := r.codec.Verify(token, tokens.Refresh)
	if err != nil {
		return "", err
	}

	stored, err := r.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", fmt.Errorf("%w: refresh token revoked", common.ErrInvalidToken)
		}
		return "", err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return "", fmt.Errorf("%w: refresh token superseded", common.ErrInvalidToken)
	}

	return claims.UserID, nil
}

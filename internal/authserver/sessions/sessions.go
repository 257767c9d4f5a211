// Package sessions keeps an advisory snapshot of each logged-in user.
// Sessions are informational only and never consulted for authorization.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kvstore"
)

// Session is the JSON value stored under <prefix><user_id>.
type Session struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IsActive     bool      `json:"is_active"`

	// ExpiresAt is derived from the key lifetime on read and never stored.
	ExpiresAt time.Time `json:"-"`
}

// Store writes sessions with a fixed lifetime, equal to the access token
// lifetime, which is reset on every write.
type Store struct {
	kv     kvstore.Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(kv kvstore.Store, prefix string, ttl time.Duration, opts ...Option) *Store {
	s := &Store{kv: kv, prefix: prefix, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) key(userID string) string { return s.prefix + userID }

// Put overwrites the session of s.UserID.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(sess.UserID), raw, s.ttl); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Get returns the session of userID or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.kv.Get(ctx, s.key(userID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess := &Session{}
	if err := json.Unmarshal(raw, sess); err != nil {
		return nil, fmt.Errorf("decode session: %w: %w", common.ErrInternal, err)
	}
	if ttl, err := s.kv.TTL(ctx, s.key(userID)); err == nil && ttl > 0 {
		sess.ExpiresAt = s.now().Add(ttl)
	}
	return sess, nil
}

// Delete removes the session. A missing session is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.kv.Delete(ctx, s.key(userID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Touch bumps last_activity and restarts the lifetime. It is a no-op when
// the session is absent.
func (s *Store) Touch(ctx context.Context, userID string) error {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}

	sess.LastActivity = s.now().UTC()
	return s.Put(ctx, sess)
}

// Package services contains the auth server's business logic. AuthService
// is the token lifecycle manager: it registers users, logs them in, rotates
// refresh tokens, logs them out and changes passwords.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authserver/credentials"
	"github.com/dmitrijs2005/gophauth/internal/authserver/directory"
	"github.com/dmitrijs2005/gophauth/internal/authserver/sessions"
	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LoginMethod selects how LoginRequest.Identifier is resolved.
type LoginMethod string

const (
	MethodEmail    LoginMethod = "email"
	MethodUsername LoginMethod = "username"
	MethodWallet   LoginMethod = "wallet"
)

// DefaultRole is assigned to self-registered users.
const DefaultRole = "USER"

// walletNetwork is the network recorded for wallets added at registration.
const walletNetwork = "ethereum"

// Directory resolves identities in the user directory.
type Directory interface {
	UserByID(ctx context.Context, id string) (*directory.User, error)
	UserByEmail(ctx context.Context, email string) (*directory.User, error)
	UserByUsername(ctx context.Context, username string) (*directory.User, error)
	UserByWallet(ctx context.Context, address string) (*directory.User, error)
	CreateUser(ctx context.Context, in directory.CreateUserInput) (*directory.User, error)
	UpdateActivity(ctx context.Context, userID string) error
	AddWallet(ctx context.Context, userID, address, network string) error
}

// Codec mints and verifies signed tokens.
type Codec interface {
	IssueAccess(id tokens.Identity) (string, error)
	IssueRefresh(userID string) (string, error)
	Verify(token string, want tokens.Type) (*tokens.Claims, error)
	AccessTTL() time.Duration
}

// RefreshRegistry holds the single live refresh token per user.
type RefreshRegistry interface {
	Put(ctx context.Context, userID, token string) error
	Delete(ctx context.Context, userID string) error
	VerifyRefresh(ctx context.Context, token string) (string, error)
}

// SessionStore keeps advisory session snapshots.
type SessionStore interface {
	Put(ctx context.Context, s *sessions.Session) error
	Get(ctx context.Context, userID string) (*sessions.Session, error)
	Delete(ctx context.Context, userID string) error
	Touch(ctx context.Context, userID string) error
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenPair is handed to clients after login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}

// AuthResult is the outcome of a successful login or refresh.
type AuthResult struct {
	Tokens *TokenPair
	User   *directory.User
}

// LoginRequest carries credentials for Login. Password is used for the
// email and username methods; Signature and Message for the wallet method.
type LoginRequest struct {
	Identifier string
	Method     LoginMethod
	Password   string
	Signature  string
	Message    string
	IPAddress  string
	UserAgent  string
}

// RegisterRequest carries a self-registration.
type RegisterRequest struct {
	Username        string `validate:"required,min=3,max=30,username"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	FirstName       string `validate:"max=50"`
	LastName        string `validate:"max=50"`
	WalletAddress   string `validate:"omitempty,eth_addr"`
}

// AuthService implements the token lifecycle.
type AuthService struct {
	dir      Directory
	codec    Codec
	refresh  RefreshRegistry
	sessions SessionStore
	creds    credentials.Repository
	hasher   Hasher
	policy   PasswordPolicy
	logger   logging.Logger
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*AuthService)

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// NewAuthService wires the lifecycle manager from its collaborators.
func NewAuthService(
	dir Directory,
	codec Codec,
	refresh RefreshRegistry,
	sessionStore SessionStore,
	creds credentials.Repository,
	hasher Hasher,
	policy PasswordPolicy,
	logger logging.Logger,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		dir:      dir,
		codec:    codec,
		refresh:  refresh,
		sessions: sessionStore,
		creds:    creds,
		hasher:   hasher,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates the user in the directory and stores the password hash.
// A wallet address, if given, is attached afterwards on a best-effort basis.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (user *directory.User, err error) {
	defer func() { s.metrics.observe("register", err) }()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.WalletAddress = strings.ToLower(strings.TrimSpace(req.WalletAddress))

	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	if err := s.policy.Check(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user, err = s.dir.CreateUser(ctx, directory.CreateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      DefaultRole,
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	if err := s.creds.Put(ctx, &credentials.Record{
		UserID:       user.ID,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("register: store credentials: %w", err)
	}

	if req.WalletAddress != "" {
		if err := s.dir.AddWallet(ctx, user.ID, req.WalletAddress, walletNetwork); err != nil {
			s.logger.Warn(ctx, "failed to attach wallet", "user_id", user.ID, "error", err)
		}
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates req and issues a token pair. The registered refresh
// token and the session are both replaced.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (res *AuthResult, err error) {
	defer func() { s.metrics.observe("login", err) }()

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", common.ErrValidation)
	}
	if req.Method == "" {
		req.Method = MethodEmail
	}

	user, err := s.resolve(ctx, req.Method, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if !user.Active() {
		return nil, fmt.Errorf("login: %w", common.ErrInactive)
	}

	if req.Method == MethodWallet {
		// The signature is required but not cryptographically verified.
		if req.Signature == "" || req.Message == "" {
			return nil, fmt.Errorf("%w: signature and message required for wallet login", common.ErrValidation)
		}
	} else {
		if req.Password == "" {
			return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
		}
		if err := s.checkPassword(ctx, user.ID, req.Password); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	// The previous refresh token stays registered until the session is
	// stored, so a failed login leaves the user's existing pair usable.
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	now := s.now().UTC()
	if err := s.sessions.Put(ctx, &sessions.Session{
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		LoginTime:    now,
		LastActivity: now,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		IsActive:     true,
	}); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.refresh.Put(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.dir.UpdateActivity(ctx, user.ID); err != nil {
		s.logger.Warn(ctx, "failed to update user activity", "user_id", user.ID, "error", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "method", string(req.Method))
	return &AuthResult{Tokens: pair, User: user}, nil
}

// Refresh exchanges the currently registered refresh token for a new pair.
// The old refresh token stops working. Nothing changes when any check fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	defer func() { s.metrics.observe("refresh", err) }()

	userID, err := s.refresh.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	user, err := s.dir.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !user.Active() {
		return nil, fmt.Errorf("refresh: %w", common.ErrInactive)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if err := s.sessions.Touch(ctx, userID); err != nil {
		s.logger.Warn(ctx, "failed to touch session", "user_id", userID, "error", err)
	}

	return &AuthResult{Tokens: pair, User: user}, nil
}

// Logout revokes the refresh token and drops the session. Access tokens
// already handed out stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.observe("logout", err) }()

	if err := s.revoke(ctx, userID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// ChangePassword replaces the password hash after checking current, then
// revokes the refresh token and session. The two writes are not atomic: if
// revocation fails the new password is already in effect and the error is
// returned so the caller can retry a logout.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) (err error) {
	defer func() { s.metrics.observe("change_password", err) }()

	if err := s.policy.Check(next); err != nil {
		return err
	}

	rec, err := s.loadCredentials(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.hasher.Compare(rec.PasswordHash, current); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if err := s.creds.Put(ctx, &credentials.Record{
		UserID:       userID,
		PasswordHash: hash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if err := s.revoke(ctx, userID); err != nil {
		return fmt.Errorf("change password: password updated but revocation failed: %w", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// VerifyAccess validates an access token without touching any store.
func (s *AuthService) VerifyAccess(token string) (*tokens.Claims, error) {
	return s.codec.Verify(token, tokens.Access)
}

// Session returns the advisory session snapshot of userID.
func (s *AuthService) Session(ctx context.Context, userID string) (*sessions.Session, error) {
	return s.sessions.Get(ctx, userID)
}

func (s *AuthService) resolve(ctx context.Context, method LoginMethod, identifier string) (*directory.User, error) {
	switch method {
	case MethodEmail:
		return s.dir.UserByEmail(ctx, identifier)
	case MethodUsername:
		return s.dir.UserByUsername(ctx, identifier)
	case MethodWallet:
		return s.dir.UserByWallet(ctx, identifier)
	default:
		return nil, fmt.Errorf("%w: unknown login method %q", common.ErrValidation, method)
	}
}

// loadCredentials loads the record of userID; a missing record reads as bad
// credentials so callers cannot tell the two apart.
func (s *AuthService) loadCredentials(ctx context.Context, userID string) (*credentials.Record, error) {
	rec, err := s.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	return rec, nil
}

func (s *AuthService) checkPassword(ctx context.Context, userID, password string) error {
	rec, err := s.loadCredentials(ctx, userID)
	if err != nil {
		return err
	}
	return s.hasher.Compare(rec.PasswordHash, password)
}

// issuePair mints both tokens and registers the refresh token, which
// replaces any previously registered one.
func (s *AuthService) issuePair(ctx context.Context, user *directory.User) (*TokenPair, error) {
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Put(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) mintPair(user *directory.User) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(tokens.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
	if err != nil {
		return nil, err
	}

	refresh, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenTypeBearer,
		ExpiresIn:    int64(s.codec.AccessTTL() / time.Second),
	}, nil
}

func (s *AuthService) revoke(ctx context.Context, userID string) error {
	return errors.Join(
		s.refresh.Delete(ctx, userID),
		s.sessions.Delete(ctx, userID),
	)
}

package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authserver/directory"
	"github.com/dmitrijs2005/gophauth/internal/authserver/services"
	"github.com/dmitrijs2005/gophauth/internal/authserver/sessions"
	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/graph-gophers/graphql-go"
)

const serviceName = "auth-service"

// AuthService is the lifecycle manager the resolvers delegate to.
type AuthService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*directory.User, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	VerifyAccess(token string) (*tokens.Claims, error)
	Session(ctx context.Context, userID string) (*sessions.Session, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	svc    AuthService
	store  Pinger
	users  Pinger
	logger logging.Logger
}

func NewResolver(svc AuthService, store, users Pinger, l logging.Logger) *Resolver {
	return &Resolver{svc: svc, store: store, users: users, logger: l.With("module", "graphql")}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int32
}

type UserInfo struct {
	ID        graphql.ID
	Username  string
	Email     string
	Role      string
	Status    string
	FirstName *string
	LastName  *string
}

type AuthPayload struct {
	Success bool
	Message string
	Code    *string
	Tokens  *TokenPair
	User    *UserInfo
}

type StatusPayload struct {
	Success bool
	Message string
	Code    *string
}

type Me struct {
	ID           graphql.ID
	Username     string
	Email        string
	Role         string
	Status       string
	LoginTime    *string
	LastActivity *string
}

type Session struct {
	UserID       graphql.ID
	Username     string
	Email        string
	Role         string
	LoginTime    string
	LastActivity string
	IPAddress    *string
	UserAgent    *string
	IsActive     bool
	ExpiresAt    *string
}

type TokenVerification struct {
	Valid     bool
	Message   string
	UserID    *graphql.ID
	Username  *string
	Email     *string
	Role      *string
	ExpiresAt *string
}

type Health struct {
	Status               string
	Service              string
	StoreConnected       bool
	UserServiceConnected bool
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       *string
	LastName        *string
	WalletAddress   *string
}

type LoginInput struct {
	Identifier string
	Password   *string
	Signature  *string
	Message    *string
	Method     string
}

type WalletLoginInput struct {
	WalletAddress string
	Signature     string
	Message       string
}

type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

func (r *Resolver) Health(ctx context.Context) *Health {
	h := &Health{
		Service:              serviceName,
		StoreConnected:       r.store.Ping(ctx) == nil,
		UserServiceConnected: r.users.Ping(ctx) == nil,
	}
	h.Status = "OK"
	if !h.StoreConnected || !h.UserServiceConnected {
		h.Status = "ERROR"
	}
	return h
}

func (r *Resolver) Me(ctx context.Context) (*Me, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, errNotAuthenticated
	}

	me := &Me{
		ID:       graphql.ID(claims.UserID),
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
		// a verified access token implies the user was active at issue time
		Status: directory.StatusActive,
	}

	s, err := r.svc.Session(ctx, claims.UserID)
	switch {
	case err == nil:
		me.LoginTime = ptr(formatTime(s.LoginTime))
		me.LastActivity = ptr(formatTime(s.LastActivity))
	case !errors.Is(err, common.ErrNotFound):
		r.logger.Warn(ctx, "session lookup failed", "user_id", claims.UserID, "error", err)
	}
	return me, nil
}

func (r *Resolver) Session(ctx context.Context) (*Session, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, errNotAuthenticated
	}

	s, err := r.svc.Session(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		code, msg := describe(ctx, r.logger, "session", err)
		return nil, &codedError{code: code, msg: msg}
	}

	var expiresAt *string
	if !s.ExpiresAt.IsZero() {
		expiresAt = ptr(formatTime(s.ExpiresAt))
	}

	return &Session{
		UserID:       graphql.ID(s.UserID),
		Username:     s.Username,
		Email:        s.Email,
		Role:         s.Role,
		LoginTime:    formatTime(s.LoginTime),
		LastActivity: formatTime(s.LastActivity),
		IPAddress:    optional(s.IPAddress),
		UserAgent:    optional(s.UserAgent),
		IsActive:     s.IsActive,
		ExpiresAt:    expiresAt,
	}, nil
}

func (r *Resolver) VerifyToken(args struct{ Token string }) *TokenVerification {
	claims, err := r.svc.VerifyAccess(args.Token)
	if err != nil {
		return &TokenVerification{Message: "invalid or expired token"}
	}

	id := graphql.ID(claims.UserID)
	v := &TokenVerification{
		Valid:    true,
		Message:  "token is valid",
		UserID:   &id,
		Username: optional(claims.Username),
		Email:    optional(claims.Email),
		Role:     optional(claims.Role),
	}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = ptr(formatTime(claims.ExpiresAt.Time))
	}
	return v
}

func (r *Resolver) Register(ctx context.Context, args struct{ Input RegisterInput }) *AuthPayload {
	in := args.Input
	u, err := r.svc.Register(ctx, services.RegisterRequest{
		Username:        in.Username,
		Email:           in.Email,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
		FirstName:       deref(in.FirstName),
		LastName:        deref(in.LastName),
		WalletAddress:   deref(in.WalletAddress),
	})
	if err != nil {
		return r.authFailure(ctx, "register", err)
	}

	return &AuthPayload{
		Success: true,
		Message: "User registered successfully",
		User:    userInfo(u),
	}
}

func (r *Resolver) Login(ctx context.Context, args struct{ Input LoginInput }) *AuthPayload {
	in := args.Input
	method := services.MethodEmail
	if in.Method != "" {
		method = services.LoginMethod(strings.ToLower(in.Method))
	}

	return r.login(ctx, services.LoginRequest{
		Identifier: in.Identifier,
		Method:     method,
		Password:   deref(in.Password),
		Signature:  deref(in.Signature),
		Message:    deref(in.Message),
	})
}

func (r *Resolver) WalletLogin(ctx context.Context, args struct{ Input WalletLoginInput }) *AuthPayload {
	return r.login(ctx, services.LoginRequest{
		Identifier: args.Input.WalletAddress,
		Method:     services.MethodWallet,
		Signature:  args.Input.Signature,
		Message:    args.Input.Message,
	})
}

func (r *Resolver) login(ctx context.Context, req services.LoginRequest) *AuthPayload {
	ci := clientFromContext(ctx)
	req.IPAddress = ci.ip
	req.UserAgent = ci.userAgent

	res, err := r.svc.Login(ctx, req)
	if err != nil {
		return r.authFailure(ctx, "login", err)
	}
	return authSuccess("Login successful", res)
}

func (r *Resolver) RefreshToken(ctx context.Context, args struct{ RefreshToken string }) *AuthPayload {
	res, err := r.svc.Refresh(ctx, args.RefreshToken)
	if err != nil {
		return r.authFailure(ctx, "refresh", err)
	}
	return authSuccess("Token refreshed successfully", res)
}

func (r *Resolver) Logout(ctx context.Context) *StatusPayload {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return notAuthenticated()
	}

	if err := r.svc.Logout(ctx, claims.UserID); err != nil {
		return r.statusFailure(ctx, "logout", err)
	}
	return &StatusPayload{Success: true, Message: "Logged out successfully"}
}

func (r *Resolver) ChangePassword(ctx context.Context, args struct{ Input ChangePasswordInput }) *StatusPayload {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return notAuthenticated()
	}

	in := args.Input
	if in.NewPassword != in.ConfirmPassword {
		return &StatusPayload{Message: "passwords do not match", Code: ptr(common.CodeValidation)}
	}

	if err := r.svc.ChangePassword(ctx, claims.UserID, in.CurrentPassword, in.NewPassword); err != nil {
		return r.statusFailure(ctx, "change_password", err)
	}
	return &StatusPayload{Success: true, Message: "Password changed successfully"}
}

func (r *Resolver) authFailure(ctx context.Context, op string, err error) *AuthPayload {
	code, msg := describe(ctx, r.logger, op, err)
	return &AuthPayload{Message: msg, Code: &code}
}

func (r *Resolver) statusFailure(ctx context.Context, op string, err error) *StatusPayload {
	code, msg := describe(ctx, r.logger, op, err)
	return &StatusPayload{Message: msg, Code: &code}
}

func notAuthenticated() *StatusPayload {
	return &StatusPayload{Message: errNotAuthenticated.msg, Code: ptr(errNotAuthenticated.code)}
}

func authSuccess(msg string, res *services.AuthResult) *AuthPayload {
	return &AuthPayload{
		Success: true,
		Message: msg,
		Tokens: &TokenPair{
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
			TokenType:    res.Tokens.TokenType,
			ExpiresIn:    int32(res.Tokens.ExpiresIn),
		},
		User: userInfo(res.User),
	}
}

func userInfo(u *directory.User) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		ID:        graphql.ID(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		FirstName: optional(u.FirstName),
		LastName:  optional(u.LastName),
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func ptr[T any](v T) *T { return &v }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package graph

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/userserver/avatars"
	"github.com/dmitrijs2005/gophauth/internal/userserver/models"
	"github.com/dmitrijs2005/gophauth/internal/userserver/users"
	"github.com/graph-gophers/graphql-go"
)

const serviceName = "user-service"

// UserService is the directory the resolvers delegate to.
type UserService interface {
	CreateUser(ctx context.Context, in users.CreateUserInput) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByWallet(ctx context.Context, address string) (*models.User, error)
	UpdateActivity(ctx context.Context, id string) error
	AddWallet(ctx context.Context, id string, in users.WalletInput) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, in users.ProfileUpdate) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, page, pageSize int, f models.Filter) (*users.Page, error)
	AvatarUploadURL(ctx context.Context, id string) (*avatars.Upload, error)
	Ping(ctx context.Context) error
}

type Resolver struct {
	svc    UserService
	logger logging.Logger
}

func NewResolver(svc UserService, l logging.Logger) *Resolver {
	return &Resolver{svc: svc, logger: l.With("module", "graphql")}
}

type Profile struct {
	FirstName *string
	LastName  *string
	Bio       *string
	AvatarURL *string
	Location  *string
	Phone     *string
}

type Wallet struct {
	Address    string
	Network    string
	IsVerified bool
	CreatedAt  string
}

type User struct {
	ID              graphql.ID
	Username        string
	Email           string
	Profile         *Profile
	Role            string
	Status          string
	IsVerified      bool
	WalletAddresses []*Wallet
	PrimaryWallet   *string
	LoginCount      int32
	CreatedAt       string
	UpdatedAt       string
	LastLogin       *string
	LastActive      *string
}

type UserResponse struct {
	Success bool
	Message string
	Code    *string
	User    *User
}

type BooleanResponse struct {
	Success bool
	Message string
	Code    *string
}

type UserConnection struct {
	Users           []*User
	TotalCount      int32
	Page            int32
	PageSize        int32
	HasNextPage     bool
	HasPreviousPage bool
}

type AvatarUpload struct {
	Success   bool
	Message   string
	Code      *string
	Key       *string
	UploadURL *string
	ExpiresAt *string
}

type Health struct {
	Status            string
	Service           string
	DatabaseConnected bool
}

func (r *Resolver) Health(ctx context.Context) *Health {
	h := &Health{Status: "healthy", Service: serviceName, DatabaseConnected: true}
	if err := r.svc.Ping(ctx); err != nil {
		r.logger.Warn(ctx, "database ping failed", "error", err)
		h.Status = "unhealthy"
		h.DatabaseConnected = false
	}
	return h
}

func (r *Resolver) UserByID(ctx context.Context, args struct{ UserID string }) (*User, error) {
	return r.lookup(ctx, "userById", args.UserID, r.svc.UserByID)
}

func (r *Resolver) UserByEmail(ctx context.Context, args struct{ Email string }) (*User, error) {
	return r.lookup(ctx, "userByEmail", args.Email, r.svc.UserByEmail)
}

func (r *Resolver) UserByUsername(ctx context.Context, args struct{ Username string }) (*User, error) {
	return r.lookup(ctx, "userByUsername", args.Username, r.svc.UserByUsername)
}

func (r *Resolver) UserByWallet(ctx context.Context, args struct{ WalletAddress string }) (*User, error) {
	return r.lookup(ctx, "userByWallet", args.WalletAddress, r.svc.UserByWallet)
}

// lookup resolves a single user; unknown users resolve to null.
func (r *Resolver) lookup(ctx context.Context, op, key string, get func(context.Context, string) (*models.User, error)) (*User, error) {
	u, err := get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, asGraphQLError(ctx, r.logger, op, err)
	}
	return toUser(u), nil
}

type usersArgs struct {
	Page     *int32
	PageSize *int32
	Status   *string
	Role     *string
	Search   *string
}

func (r *Resolver) Users(ctx context.Context, args usersArgs) (*UserConnection, error) {
	f := models.Filter{
		Status: models.Status(deref(args.Status)),
		Role:   models.Role(deref(args.Role)),
		Search: deref(args.Search),
	}

	var page, size int
	if args.Page != nil {
		page = int(*args.Page)
	}
	if args.PageSize != nil {
		size = int(*args.PageSize)
	}

	p, err := r.svc.ListUsers(ctx, page, size, f)
	if err != nil {
		return nil, asGraphQLError(ctx, r.logger, "users", err)
	}

	out := &UserConnection{
		Users:           make([]*User, 0, len(p.Users)),
		TotalCount:      clamp32(p.TotalCount),
		Page:            int32(p.Page),
		PageSize:        int32(p.PageSize),
		HasNextPage:     p.HasNextPage,
		HasPreviousPage: p.HasPreviousPage,
	}
	for _, u := range p.Users {
		out.Users = append(out.Users, toUser(u))
	}
	return out, nil
}

type CreateUserInput struct {
	Username  string
	Email     string
	FirstName *string
	LastName  *string
	Bio       *string
	Role      *string
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input CreateUserInput }) *UserResponse {
	in := args.Input
	u, err := r.svc.CreateUser(ctx, users.CreateUserInput{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: deref(in.FirstName),
		LastName:  deref(in.LastName),
		Bio:       deref(in.Bio),
		Role:      models.Role(deref(in.Role)),
	})
	return r.userResponse(ctx, "createUser", "User created successfully", u, err)
}

func (r *Resolver) UpdateUserActivity(ctx context.Context, args struct{ UserID string }) *BooleanResponse {
	err := r.svc.UpdateActivity(ctx, args.UserID)
	return r.booleanResponse(ctx, "updateUserActivity", "Activity updated", err)
}

type AddWalletInput struct {
	Address string
	Network *string
}

func (r *Resolver) AddWallet(ctx context.Context, args struct {
	UserID string
	Input  AddWalletInput
}) *UserResponse {
	u, err := r.svc.AddWallet(ctx, args.UserID, users.WalletInput{
		Address: args.Input.Address,
		Network: deref(args.Input.Network),
	})
	return r.userResponse(ctx, "addWallet", "Wallet added successfully", u, err)
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Bio       *string
	AvatarURL *string
	Location  *string
	Phone     *string
}

func (r *Resolver) UpdateProfile(ctx context.Context, args struct {
	UserID string
	Input  UpdateProfileInput
}) *UserResponse {
	in := args.Input
	u, err := r.svc.UpdateProfile(ctx, args.UserID, users.ProfileUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Bio:       in.Bio,
		AvatarURL: in.AvatarURL,
		Location:  in.Location,
		Phone:     in.Phone,
	})
	return r.userResponse(ctx, "updateProfile", "Profile updated successfully", u, err)
}

func (r *Resolver) UpdateUserStatus(ctx context.Context, args struct {
	UserID string
	Status string
}) *UserResponse {
	u, err := r.svc.UpdateStatus(ctx, args.UserID, models.Status(args.Status))
	return r.userResponse(ctx, "updateUserStatus", "Status updated successfully", u, err)
}

func (r *Resolver) DeleteUser(ctx context.Context, args struct{ UserID string }) *BooleanResponse {
	err := r.svc.DeleteUser(ctx, args.UserID)
	return r.booleanResponse(ctx, "deleteUser", "User deactivated", err)
}

func (r *Resolver) AvatarUploadURL(ctx context.Context, args struct{ UserID string }) *AvatarUpload {
	up, err := r.svc.AvatarUploadURL(ctx, args.UserID)
	if err != nil {
		code, msg := describe(ctx, r.logger, "avatarUploadUrl", err)
		return &AvatarUpload{Message: msg, Code: &code}
	}
	return &AvatarUpload{
		Success:   true,
		Message:   "Upload URL issued",
		Key:       &up.Key,
		UploadURL: &up.URL,
		ExpiresAt: ptr(formatTime(up.ExpiresAt)),
	}
}

func (r *Resolver) userResponse(ctx context.Context, op, okMsg string, u *models.User, err error) *UserResponse {
	if err != nil {
		code, msg := describe(ctx, r.logger, op, err)
		return &UserResponse{Message: msg, Code: &code}
	}
	return &UserResponse{Success: true, Message: okMsg, User: toUser(u)}
}

func (r *Resolver) booleanResponse(ctx context.Context, op, okMsg string, err error) *BooleanResponse {
	if err != nil {
		code, msg := describe(ctx, r.logger, op, err)
		return &BooleanResponse{Message: msg, Code: &code}
	}
	return &BooleanResponse{Success: true, Message: okMsg}
}

func toUser(u *models.User) *User {
	out := &User{
		ID:       graphql.ID(u.ID.Hex()),
		Username: u.Username,
		Email:    u.Email,
		Profile: &Profile{
			FirstName: optional(u.Profile.FirstName),
			LastName:  optional(u.Profile.LastName),
			Bio:       optional(u.Profile.Bio),
			AvatarURL: optional(u.Profile.AvatarURL),
			Location:  optional(u.Profile.Location),
			Phone:     optional(u.Profile.Phone),
		},
		Role:            string(u.Role),
		Status:          string(u.Status),
		IsVerified:      u.IsVerified,
		WalletAddresses: make([]*Wallet, 0, len(u.Wallets)),
		PrimaryWallet:   optional(u.PrimaryWallet),
		LoginCount:      clamp32(u.LoginCount),
		CreatedAt:       formatTime(u.CreatedAt),
		UpdatedAt:       formatTime(u.UpdatedAt),
	}
	for _, w := range u.Wallets {
		out.WalletAddresses = append(out.WalletAddresses, &Wallet{
			Address:    w.Address,
			Network:    w.Network,
			IsVerified: w.IsVerified,
			CreatedAt:  formatTime(w.CreatedAt),
		})
	}
	if u.LastLogin != nil {
		out.LastLogin = ptr(formatTime(*u.LastLogin))
	}
	if u.LastActive != nil {
		out.LastActive = ptr(formatTime(*u.LastActive))
	}
	return out
}

func clamp32(n int64) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Package users implements the user directory: persistence of user profiles
// and wallets and the operations the auth server and operators call on them.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/userserver/avatars"
	"github.com/dmitrijs2005/gophauth/internal/userserver/models"
)

// DefaultNetwork is recorded for wallets added without a network.
const DefaultNetwork = "ethereum"

// AvatarSigner hands out presigned avatar upload URLs.
type AvatarSigner interface {
	UploadURL(ctx context.Context, userID string) (*avatars.Upload, error)
}

type CreateUserInput struct {
	Username  string `validate:"required,min=3,max=30,username"`
	Email     string `validate:"required,email"`
	FirstName string `validate:"max=50"`
	LastName  string `validate:"max=50"`
	Bio       string `validate:"max=500"`
	Role      models.Role
}

type WalletInput struct {
	Address string `validate:"required,eth_addr"`
	Network string
}

// ProfileUpdate changes only the non-nil fields. An empty string clears a
// field.
type ProfileUpdate struct {
	FirstName *string `validate:"omitempty,max=50"`
	LastName  *string `validate:"omitempty,max=50"`
	Bio       *string `validate:"omitempty,max=500"`
	AvatarURL *string `validate:"omitempty,url"`
	Location  *string `validate:"omitempty,max=100"`
	Phone     *string `validate:"omitempty,phone"`
}

// Page is one slice of a user listing.
type Page struct {
	Users           []*models.User
	TotalCount      int64
	Page            int
	PageSize        int
	HasNextPage     bool
	HasPreviousPage bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAvatars enables avatar upload URLs.
func WithAvatars(a AvatarSigner) Option {
	return func(s *Service) { s.avatars = a }
}

type Service struct {
	repo        Repository
	avatars     AvatarSigner
	logger      logging.Logger
	pageSize    int
	maxPageSize int
	now         func() time.Time
}

func NewService(repo Repository, logger logging.Logger, pageSize, maxPageSize int, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		logger:      logger,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}

	if err := s.ensureFree(ctx, "username", in.Username, s.repo.GetByUsername); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "email", in.Email, s.repo.GetByEmail); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Profile: models.Profile{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Bio:       in.Bio,
		},
		Role:      role,
		Status:    models.StatusActive,
		Wallets:   []models.Wallet{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user created", "user_id", u.ID.Hex(), "username", u.Username)
	return u, nil
}

func (s *Service) ensureFree(ctx context.Context, field, value string, get func(context.Context, string) (*models.User, error)) error {
	_, err := get(ctx, value)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s '%s' already exists", common.ErrAlreadyExists, field, value)
	case errors.Is(err, common.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) UserByWallet(ctx context.Context, address string) (*models.User, error) {
	return s.repo.GetByWallet(ctx, strings.ToLower(strings.TrimSpace(address)))
}

// UpdateActivity records a successful login.
func (s *Service) UpdateActivity(ctx context.Context, id string) error {
	return s.repo.RecordLogin(ctx, id, s.now().UTC())
}

// AddWallet attaches a wallet to the user. An address already attached to
// any user, including this one, is rejected.
func (s *Service) AddWallet(ctx context.Context, id string, in WalletInput) (*models.User, error) {
	in.Address = strings.TrimSpace(in.Address)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Network == "" {
		in.Network = DefaultNetwork
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.repo.GetByWallet(ctx, strings.ToLower(in.Address))
	switch {
	case err == nil:
		if owner.ID == u.ID {
			return nil, fmt.Errorf("%w: wallet is already attached to this user", common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%w: wallet is registered to another user", common.ErrAlreadyExists)
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	now := s.now().UTC()
	u.AddWallet(in.Address, in.Network, now)
	u.UpdatedAt = now

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&u.Profile.FirstName, in.FirstName)
	set(&u.Profile.LastName, in.LastName)
	set(&u.Profile.Bio, in.Bio)
	set(&u.Profile.AvatarURL, in.AvatarURL)
	set(&u.Profile.Location, in.Location)
	set(&u.Profile.Phone, in.Phone)
	u.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, status)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Status = status
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user status changed", "user_id", id, "status", string(status))
	return u, nil
}

// DeleteUser deactivates the user; the record is kept.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	_, err := s.UpdateStatus(ctx, id, models.StatusInactive)
	return err
}

// ListUsers returns the 1-based page of users matching f. Non-positive
// sizes fall back to the default and oversized ones are clamped.
func (s *Service) ListUsers(ctx context.Context, page, pageSize int, f models.Filter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, f.Status)
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, f.Role)
	}
	f.Search = strings.TrimSpace(f.Search)

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}

	skip := (page - 1) * pageSize
	list, err := s.repo.List(ctx, f, skip, pageSize)
	if err != nil {
		return nil, err
	}

	return &Page{
		Users:           list,
		TotalCount:      total,
		Page:            page,
		PageSize:        pageSize,
		HasNextPage:     int64(skip+len(list)) < total,
		HasPreviousPage: page > 1,
	}, nil
}

func (s *Service) AvatarUploadURL(ctx context.Context, id string) (*avatars.Upload, error) {
	if s.avatars == nil {
		return nil, fmt.Errorf("%w: avatar uploads are not configured", common.ErrUnavailable)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.avatars.UploadURL(ctx, id)
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

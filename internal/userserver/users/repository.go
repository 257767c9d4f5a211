package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/userserver/models"
)

// Repository persists directory entries.
//
// Lookups return common.ErrNotFound for unknown users (including malformed
// ids). Create and Update return common.ErrAlreadyExists when a username,
// email or wallet address is taken by another user. Update writes the
// editable fields only; activity counters change exclusively through
// RecordLogin so concurrent logins are never lost.
type Repository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByWallet(ctx context.Context, address string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	RecordLogin(ctx context.Context, id string, now time.Time) error
	List(ctx context.Context, f models.Filter, skip, limit int) ([]*models.User, error)
	Count(ctx context.Context, f models.Filter) (int64, error)
	Ping(ctx context.Context) error
}

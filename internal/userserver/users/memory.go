package users

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/userserver/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryRepository keeps users in process memory. It enforces the same
// uniqueness rules as the Mongo indexes.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[bson.ObjectID]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: map[bson.ObjectID]*models.User{}}
}

func clone(u *models.User) *models.User {
	c := *u
	c.Wallets = slices.Clone(u.Wallets)
	return &c
}

// conflicts reports whether u collides with another stored user. Callers
// hold the lock.
func (r *MemoryRepository) conflicts(u *models.User) bool {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username || other.Email == u.Email {
			return true
		}
		for _, w := range u.Wallets {
			if other.HasWallet(w.Address) {
				return true
			}
		}
	}
	return false
}

func (r *MemoryRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if _, ok := r.users[u.ID]; ok || r.conflicts(u) {
		return common.ErrAlreadyExists
	}
	r.users[u.ID] = clone(u)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[oid]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryRepository) GetByWallet(_ context.Context, address string) (*models.User, error) {
	address = strings.ToLower(address)
	return r.find(func(u *models.User) bool { return u.HasWallet(address) })
}

func (r *MemoryRepository) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[u.ID]
	if !ok {
		return common.ErrNotFound
	}
	if r.conflicts(u) {
		return common.ErrAlreadyExists
	}

	next := clone(u)
	next.LoginCount = cur.LoginCount
	next.LastLogin = cur.LastLogin
	next.LastActive = cur.LastActive
	next.CreatedAt = cur.CreatedAt
	r.users[u.ID] = next
	return nil
}

func (r *MemoryRepository) RecordLogin(_ context.Context, id string, now time.Time) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[oid]
	if !ok {
		return common.ErrNotFound
	}
	u.RecordLogin(now)
	return nil
}

func (r *MemoryRepository) matching(f models.Filter) []*models.User {
	var out []*models.User
	for _, u := range r.users {
		if f.Matches(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.Hex(), b.ID.Hex())
	})
	return out
}

func (r *MemoryRepository) List(_ context.Context, f models.Filter, skip, limit int) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.matching(f)
	users := []*models.User{}
	for i := skip; i < len(all) && len(users) < limit; i++ {
		users = append(users, clone(all[i]))
	}
	return users, nil
}

func (r *MemoryRepository) Count(_ context.Context, f models.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.matching(f))), nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

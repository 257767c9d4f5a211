package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kvstore"
)

// KVRepository keeps records as JSON values under <prefix><user_id>
// without expiry.
type KVRepository struct {
	store  kvstore.Store
	prefix string
}

func NewKVRepository(store kvstore.Store, prefix string) *KVRepository {
	return &KVRepository{store: store, prefix: prefix}
}

func (r *KVRepository) key(userID string) string { return r.prefix + userID }

func (r *KVRepository) Get(ctx context.Context, userID string) (*Record, error) {
	raw, err := r.store.Get(ctx, r.key(userID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}

	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode credentials: %w: %w", common.ErrInternal, err)
	}
	return rec, nil
}

func (r *KVRepository) Put(ctx context.Context, rec *Record) error {
	if rec.UserID == "" {
		return fmt.Errorf("put credentials: %w: empty user id", common.ErrValidation)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := r.store.Set(ctx, r.key(rec.UserID), raw, 0); err != nil {
		return fmt.Errorf("put credentials: %w", err)
	}
	return nil
}

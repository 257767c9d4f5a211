package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVRepository_PutGet(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	repo := NewKVRepository(store, "password:")

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{UserID: "u1", PasswordHash: "$2a$hash", CreatedAt: created, UpdatedAt: created}
	require.NoError(t, repo.Put(ctx, rec))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "$2a$hash", got.PasswordHash)
	assert.True(t, created.Equal(got.CreatedAt))

	raw, err := store.Get(ctx, "password:u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"u1","password_hash":"$2a$hash","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`, string(raw))

	ttl, err := store.TTL(ctx, "password:u1")
	require.NoError(t, err)
	assert.Zero(t, ttl, "credential records never expire")
}

func TestKVRepository_Overwrite(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(kvstore.NewMemoryStore(), "password:")

	require.NoError(t, repo.Put(ctx, &Record{UserID: "u1", PasswordHash: "old"}))
	require.NoError(t, repo.Put(ctx, &Record{UserID: "u1", PasswordHash: "new"}))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
}

func TestKVRepository_NotFound(t *testing.T) {
	repo := NewKVRepository(kvstore.NewMemoryStore(), "password:")

	_, err := repo.Get(context.Background(), "ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestKVRepository_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "password:u1", []byte("{not json"), 0))

	_, err := NewKVRepository(store, "password:").Get(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestKVRepository_EmptyUserID(t *testing.T) {
	err := NewKVRepository(kvstore.NewMemoryStore(), "password:").Put(context.Background(), &Record{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestKVRepository_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Close())
	repo := NewKVRepository(store, "password:")

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.ErrorIs(t, repo.Put(ctx, &Record{UserID: "u1"}), common.ErrUnavailable)
}

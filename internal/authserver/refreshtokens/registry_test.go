package refreshtokens

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Registry, *tokens.Codec, *kvstore.MemoryStore) {
	t.Helper()
	codec, err := tokens.NewCodec([]byte("secret"), "HS256", time.Minute, time.Hour)
	require.NoError(t, err)
	kv := kvstore.NewMemoryStore()
	return NewRegistry(kv, codec, "auth_refresh:", time.Hour), codec, kv
}

func TestRegistry_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	r, _, kv := newRegistry(t)

	require.NoError(t, r.Put(ctx, "u1", "tok"))

	got, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	ttl, err := kv.TTL(ctx, "auth_refresh:u1")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, r.Delete(ctx, "u1"))
	require.NoError(t, r.Delete(ctx, "u1"))

	_, err = r.Get(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRegistry_VerifyRefresh(t *testing.T) {
	ctx := context.Background()
	r, codec, _ := newRegistry(t)

	tok, err := codec.IssueRefresh("u1")
	require.NoError(t, err)

	t.Run("not registered", func(t *testing.T) {
		_, err := r.VerifyRefresh(ctx, tok)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	require.NoError(t, r.Put(ctx, "u1", tok))

	t.Run("registered", func(t *testing.T) {
		uid, err := r.VerifyRefresh(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, "u1", uid)
	})

	t.Run("superseded", func(t *testing.T) {
		newer, err := codec.IssueRefresh("u1")
		require.NoError(t, err)
		require.NoError(t, r.Put(ctx, "u1", newer))

		_, err = r.VerifyRefresh(ctx, tok)
		assert.ErrorIs(t, err, common.ErrInvalidToken)

		uid, err := r.VerifyRefresh(ctx, newer)
		require.NoError(t, err)
		assert.Equal(t, "u1", uid)
	})

	t.Run("access token rejected", func(t *testing.T) {
		access, err := codec.IssueAccess(tokens.Identity{UserID: "u1"})
		require.NoError(t, err)
		require.NoError(t, r.Put(ctx, "u1", access))

		_, err = r.VerifyRefresh(ctx, access)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := r.VerifyRefresh(ctx, "garbage")
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})
}

func TestRegistry_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	r, codec, kv := newRegistry(t)

	tok, err := codec.IssueRefresh("u1")
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	_, err = r.VerifyRefresh(ctx, tok)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.ErrorIs(t, r.Put(ctx, "u1", tok), common.ErrUnavailable)
}

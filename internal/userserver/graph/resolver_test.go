package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authserver/directory"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/httpx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/userserver/avatars"
	"github.com/dmitrijs2005/gophauth/internal/userserver/models"
	"github.com/dmitrijs2005/gophauth/internal/userserver/users"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeSigner struct{}

func (fakeSigner) UploadURL(_ context.Context, userID string) (*avatars.Upload, error) {
	return &avatars.Upload{
		Key:       "avatars/" + userID + "/k",
		URL:       "http://s3.local/put",
		ExpiresAt: time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC),
	}, nil
}

// brokenRepo fails every call the way an unreachable database does.
type brokenRepo struct{ users.Repository }

func (brokenRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, fmt.Errorf("find user: %w: connection refused", common.ErrUnavailable)
}

func (brokenRepo) Ping(context.Context) error {
	return fmt.Errorf("mongo ping: %w", common.ErrUnavailable)
}

const walletA = "0xAbCdEf0123456789abcdef0123456789ABCDEF01"

func newTestSchema(t *testing.T, opts ...users.Option) *graphql.Schema {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]users.Option{users.WithClock(func() time.Time { return now })}, opts...)
	svc := users.NewService(users.NewMemoryRepository(), nopLogger{}, 20, 100, opts...)
	s, err := NewSchema(NewResolver(svc, nopLogger{}))
	require.NoError(t, err)
	return s
}

func exec(t *testing.T, s *graphql.Schema, query string, vars map[string]any) map[string]any {
	t.Helper()
	resp := s.Exec(context.Background(), query, "", vars)
	require.Empty(t, resp.Errors)

	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

const createMutation = `mutation($input: CreateUserInput!) {
	createUser(input: $input) {
		success message code
		user { id username email role status loginCount createdAt profile { firstName lastName bio } walletAddresses { address } }
	}
}`

func createUser(t *testing.T, s *graphql.Schema, username string) string {
	t.Helper()
	data := exec(t, s, createMutation, map[string]any{"input": map[string]any{
		"username": username, "email": username + "@example.com", "firstName": "Ann",
	}})
	res := data["createUser"].(map[string]any)
	require.Equal(t, true, res["success"], res["message"])
	return res["user"].(map[string]any)["id"].(string)
}

func TestCreateUser(t *testing.T) {
	s := newTestSchema(t)

	data := exec(t, s, createMutation, map[string]any{"input": map[string]any{
		"username": "alice", "email": "alice@example.com", "firstName": "Alice", "role": "MODERATOR",
	}})
	res := data["createUser"].(map[string]any)
	assert.Equal(t, true, res["success"])
	assert.Nil(t, res["code"])

	u := res["user"].(map[string]any)
	assert.Equal(t, "alice", u["username"])
	assert.Equal(t, "MODERATOR", u["role"])
	assert.Equal(t, "ACTIVE", u["status"])
	assert.EqualValues(t, 0, u["loginCount"])
	assert.Equal(t, "2025-06-01T12:00:00Z", u["createdAt"])
	assert.Equal(t, map[string]any{"firstName": "Alice", "lastName": nil, "bio": nil}, u["profile"])
	assert.Equal(t, []any{}, u["walletAddresses"])
}

func TestCreateUser_Failures(t *testing.T) {
	s := newTestSchema(t)
	createUser(t, s, "alice")

	tests := []struct {
		name     string
		input    map[string]any
		wantCode string
		wantMsg  string
	}{
		{"duplicate username", map[string]any{"username": "alice", "email": "x@example.com"}, common.CodeAlreadyExists, "username 'alice' already exists"},
		{"duplicate email", map[string]any{"username": "bob", "email": "alice@example.com"}, common.CodeAlreadyExists, "email 'alice@example.com' already exists"},
		{"bad email", map[string]any{"username": "bob", "email": "nope"}, common.CodeValidation, "invalid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := exec(t, s, createMutation, map[string]any{"input": tt.input})
			res := data["createUser"].(map[string]any)
			assert.Equal(t, false, res["success"])
			assert.Equal(t, tt.wantCode, res["code"])
			assert.Equal(t, tt.wantMsg, res["message"])
			assert.Nil(t, res["user"])
		})
	}
}

func TestLookups(t *testing.T) {
	s := newTestSchema(t)
	id := createUser(t, s, "alice")

	data := exec(t, s, `query($id: String!) { userById(userId: $id) { username } }`, map[string]any{"id": id})
	assert.Equal(t, map[string]any{"username": "alice"}, data["userById"])

	data = exec(t, s, `{ userByUsername(username: "alice") { email } }`, nil)
	assert.Equal(t, map[string]any{"email": "alice@example.com"}, data["userByUsername"])

	data = exec(t, s, `{ userByEmail(email: "ghost@example.com") { id } }`, nil)
	assert.Nil(t, data["userByEmail"])

	data = exec(t, s, `{ userById(userId: "not-hex") { id } }`, nil)
	assert.Nil(t, data["userById"])
}

func TestLookup_Unavailable(t *testing.T) {
	svc := users.NewService(brokenRepo{}, nopLogger{}, 20, 100)
	s, err := NewSchema(NewResolver(svc, nopLogger{}))
	require.NoError(t, err)

	resp := s.Exec(context.Background(), `{ userByEmail(email: "a@example.com") { id } }`, "", nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "service temporarily unavailable", resp.Errors[0].Message)
	assert.Equal(t, common.CodeUnavailable, resp.Errors[0].Extensions["code"])

	data := exec(t, s, `{ health { status service databaseConnected } }`, nil)
	assert.Equal(t, map[string]any{"status": "unhealthy", "service": "user-service", "databaseConnected": false}, data["health"])
}

func TestWalletsAndActivity(t *testing.T) {
	s := newTestSchema(t)
	id := createUser(t, s, "alice")
	other := createUser(t, s, "bob")

	const addWallet = `mutation($id: String!, $input: AddWalletInput!) {
		addWallet(userId: $id, input: $input) { success code message user { primaryWallet walletAddresses { address network } } }
	}`

	data := exec(t, s, addWallet, map[string]any{"id": id, "input": map[string]any{"address": walletA}})
	res := data["addWallet"].(map[string]any)
	require.Equal(t, true, res["success"])
	u := res["user"].(map[string]any)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", u["primaryWallet"])
	assert.Equal(t, []any{map[string]any{"address": "0xabcdef0123456789abcdef0123456789abcdef01", "network": "ethereum"}}, u["walletAddresses"])

	data = exec(t, s, addWallet, map[string]any{"id": other, "input": map[string]any{"address": walletA}})
	res = data["addWallet"].(map[string]any)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, common.CodeAlreadyExists, res["code"])

	data = exec(t, s, `{ userByWallet(walletAddress: "`+walletA+`") { username } }`, nil)
	assert.Equal(t, map[string]any{"username": "alice"}, data["userByWallet"])

	data = exec(t, s, `mutation($id: String!) { updateUserActivity(userId: $id) { success } }`, map[string]any{"id": id})
	assert.Equal(t, map[string]any{"success": true}, data["updateUserActivity"])

	data = exec(t, s, `query($id: String!) { userById(userId: $id) { loginCount lastLogin lastActive } }`, map[string]any{"id": id})
	assert.Equal(t, map[string]any{
		"loginCount": float64(1),
		"lastLogin":  "2025-06-01T12:00:00Z",
		"lastActive": "2025-06-01T12:00:00Z",
	}, data["userById"])

	data = exec(t, s, `mutation { updateUserActivity(userId: "65f000000000000000000000") { success code message } }`, nil)
	assert.Equal(t, map[string]any{"success": false, "code": common.CodeNotFound, "message": "user not found"}, data["updateUserActivity"])
}

func TestProfileStatusAndDelete(t *testing.T) {
	s := newTestSchema(t)
	id := createUser(t, s, "alice")

	data := exec(t, s, `mutation($id: String!, $input: UpdateProfileInput!) {
		updateProfile(userId: $id, input: $input) { success user { profile { firstName bio location avatarUrl } } }
	}`, map[string]any{"id": id, "input": map[string]any{"bio": "gopher", "location": "Riga", "avatarUrl": "https://cdn.example.com/a.png"}})
	res := data["updateProfile"].(map[string]any)
	require.Equal(t, true, res["success"])
	assert.Equal(t, map[string]any{
		"firstName": "Ann", "bio": "gopher", "location": "Riga", "avatarUrl": "https://cdn.example.com/a.png",
	}, res["user"].(map[string]any)["profile"])

	data = exec(t, s, `mutation($id: String!) { updateUserStatus(userId: $id, status: BANNED) { success user { status } } }`, map[string]any{"id": id})
	assert.Equal(t, map[string]any{"success": true, "user": map[string]any{"status": "BANNED"}}, data["updateUserStatus"])

	data = exec(t, s, `mutation($id: String!) { deleteUser(userId: $id) { success } }`, map[string]any{"id": id})
	assert.Equal(t, map[string]any{"success": true}, data["deleteUser"])

	data = exec(t, s, `query($id: String!) { userById(userId: $id) { status } }`, map[string]any{"id": id})
	assert.Equal(t, map[string]any{"status": "INACTIVE"}, data["userById"])
}

func TestUsers_Pagination(t *testing.T) {
	s := newTestSchema(t)
	for i := range 3 {
		createUser(t, s, fmt.Sprintf("user%d", i))
	}

	data := exec(t, s, `{ users(page: 1, pageSize: 2) { totalCount page pageSize hasNextPage hasPreviousPage users { username } } }`, nil)
	conn := data["users"].(map[string]any)
	assert.EqualValues(t, 3, conn["totalCount"])
	assert.EqualValues(t, 2, conn["pageSize"])
	assert.Equal(t, true, conn["hasNextPage"])
	assert.Equal(t, false, conn["hasPreviousPage"])
	assert.Len(t, conn["users"], 2)

	data = exec(t, s, `{ users { pageSize totalCount } }`, nil)
	assert.Equal(t, map[string]any{"pageSize": float64(20), "totalCount": float64(3)}, data["users"])

	data = exec(t, s, `{ users(search: "USER1", status: ACTIVE, role: USER) { totalCount users { username } } }`, nil)
	assert.Equal(t, map[string]any{"totalCount": float64(1), "users": []any{map[string]any{"username": "user1"}}}, data["users"])
}

func TestAvatarUploadURL(t *testing.T) {
	const q = `mutation($id: String!) { avatarUploadUrl(userId: $id) { success code key uploadUrl expiresAt } }`

	t.Run("not configured", func(t *testing.T) {
		s := newTestSchema(t)
		id := createUser(t, s, "alice")
		data := exec(t, s, q, map[string]any{"id": id})
		res := data["avatarUploadUrl"].(map[string]any)
		assert.Equal(t, false, res["success"])
		assert.Equal(t, common.CodeUnavailable, res["code"])
	})

	t.Run("issued", func(t *testing.T) {
		s := newTestSchema(t, users.WithAvatars(fakeSigner{}))
		id := createUser(t, s, "alice")
		data := exec(t, s, q, map[string]any{"id": id})
		assert.Equal(t, map[string]any{
			"success":   true,
			"code":      nil,
			"key":       "avatars/" + id + "/k",
			"uploadUrl": "http://s3.local/put",
			"expiresAt": "2025-06-01T12:15:00Z",
		}, data["avatarUploadUrl"])
	})
}

// The auth server's directory client must be able to drive this API.
func TestDirectoryClientCompatibility(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestSchema(t)

	r := gin.New()
	r.POST("/graphql", httpx.GraphQL(s))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c := directory.NewClient(srv.URL, 5*time.Second, nil)
	ctx := context.Background()

	u, err := c.CreateUser(ctx, directory.CreateUserInput{
		Username: "alice", Email: "alice@example.com", FirstName: "Alice", Role: "USER",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Alice", u.FirstName)
	assert.True(t, u.Active())

	_, err = c.CreateUser(ctx, directory.CreateUserInput{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	require.NoError(t, c.AddWallet(ctx, u.ID, walletA, "ethereum"))
	byWallet, err := c.UserByWallet(ctx, walletA)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byWallet.ID)

	require.NoError(t, c.UpdateActivity(ctx, u.ID))

	byEmail, err := c.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u, byEmail)

	_, err = c.UserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

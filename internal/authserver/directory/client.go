// Package directory is the auth server's client for the user directory,
// which owns user profiles and speaks GraphQL over HTTP.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/tidwall/gjson"
)

// StatusActive is the only status allowed to authenticate.
const StatusActive = "ACTIVE"

// maxResponseBytes caps response body reads.
const maxResponseBytes = 1024 * 1024

// User is the identity snapshot returned by the directory.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func (u *User) Active() bool { return u.Status == StatusActive }

// CreateUserInput describes a new directory entry.
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// Client talks to the user directory. Failures are surfaced, never retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the directory at baseURL. If httpClient is
// nil, one with the given timeout is created.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

const userFields = `id username email role status profile { firstName lastName }`

func (c *Client) UserByID(ctx context.Context, id string) (*User, error) {
	return c.lookup(ctx, "userById", "userId", id)
}

func (c *Client) UserByEmail(ctx context.Context, email string) (*User, error) {
	return c.lookup(ctx, "userByEmail", "email", email)
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	return c.lookup(ctx, "userByUsername", "username", username)
}

func (c *Client) UserByWallet(ctx context.Context, address string) (*User, error) {
	return c.lookup(ctx, "userByWallet", "walletAddress", strings.ToLower(address))
}

func (c *Client) lookup(ctx context.Context, field, arg, value string) (*User, error) {
	query := fmt.Sprintf(`query($v: String!) { %s(%s: $v) { %s } }`, field, arg, userFields)

	data, err := c.do(ctx, query, map[string]any{"v": value})
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", field, err)
	}

	u := data.Get(field)
	if !u.Exists() || u.Type == gjson.Null {
		return nil, common.ErrNotFound
	}
	return parseUser(u), nil
}

// CreateUser registers a new user. Duplicate usernames or emails yield
// common.ErrAlreadyExists.
func (c *Client) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	query := `mutation($input: CreateUserInput!) { createUser(input: $input) { success message code user { ` + userFields + ` } } }`

	input := map[string]any{
		"username": in.Username,
		"email":    in.Email,
	}
	if in.FirstName != "" {
		input["firstName"] = in.FirstName
	}
	if in.LastName != "" {
		input["lastName"] = in.LastName
	}
	if in.Role != "" {
		input["role"] = in.Role
	}

	data, err := c.do(ctx, query, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("directory createUser: %w", err)
	}

	res := data.Get("createUser")
	if err := mutationError(res); err != nil {
		return nil, fmt.Errorf("directory createUser: %w", err)
	}

	u := res.Get("user")
	if u.Type != gjson.JSON {
		return nil, fmt.Errorf("directory createUser: %w: missing user", common.ErrInternal)
	}
	return parseUser(u), nil
}

// UpdateActivity records a successful login for userID.
func (c *Client) UpdateActivity(ctx context.Context, userID string) error {
	query := `mutation($userId: String!) { updateUserActivity(userId: $userId) { success message code } }`

	data, err := c.do(ctx, query, map[string]any{"userId": userID})
	if err != nil {
		return fmt.Errorf("directory updateUserActivity: %w", err)
	}
	if err := mutationError(data.Get("updateUserActivity")); err != nil {
		return fmt.Errorf("directory updateUserActivity: %w", err)
	}
	return nil
}

// AddWallet attaches a wallet address to userID.
func (c *Client) AddWallet(ctx context.Context, userID, address, network string) error {
	query := `mutation($userId: String!, $input: AddWalletInput!) { addWallet(userId: $userId, input: $input) { success message code } }`

	vars := map[string]any{
		"userId": userID,
		"input":  map[string]any{"address": address, "network": network},
	}

	data, err := c.do(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("directory addWallet: %w", err)
	}
	if err := mutationError(data.Get("addWallet")); err != nil {
		return fmt.Errorf("directory addWallet: %w", err)
	}
	return nil
}

// Ping checks the directory's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory health: %w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory health: %w: status %d", common.ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// do posts a GraphQL request and returns its "data" member.
func (c *Client) do(ctx context.Context, query string, vars map[string]any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: reading response: %w", common.ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: status %d", common.ErrUnavailable, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: malformed response", common.ErrUnavailable)
	}

	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%w: %s", common.ErrInternal, errs.Get("0.message").String())
	}

	return gjson.GetBytes(body, "data"), nil
}

// mutationError turns a {success, message, code} result into an error.
func mutationError(res gjson.Result) error {
	if !res.Exists() || res.Type == gjson.Null {
		return fmt.Errorf("%w: empty mutation result", common.ErrInternal)
	}
	if res.Get("success").Bool() {
		return nil
	}
	msg := res.Get("message").String()
	if msg == "" {
		msg = "request rejected"
	}
	return fmt.Errorf("%w: %s", common.FromCode(res.Get("code").String()), msg)
}

func parseUser(u gjson.Result) *User {
	return &User{
		ID:        u.Get("id").String(),
		Username:  u.Get("username").String(),
		Email:     u.Get("email").String(),
		Role:      u.Get("role").String(),
		Status:    u.Get("status").String(),
		FirstName: u.Get("profile.firstName").String(),
		LastName:  u.Get("profile.lastName").String(),
	}
}

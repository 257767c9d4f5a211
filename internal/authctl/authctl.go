// Package authctl implements the operator command line for the auth server.
//
// Supported commands:
//
//	set-password -id <user-id> | -email <address> [-stdin]
//
// set-password stores a new password hash for a directory user and revokes
// the user's refresh token and session. Without -stdin the password is read
// twice from the terminal; with -stdin a single line is read from standard
// input.
package authctl

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authserver/credentials"
	"github.com/dmitrijs2005/gophauth/internal/authserver/directory"
	"github.com/dmitrijs2005/gophauth/internal/authserver/services"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

var ErrUsage = errors.New("usage: authctl set-password -id <user-id> | -email <address> [-stdin]")

// Directory resolves the user a password is set for.
type Directory interface {
	UserByID(ctx context.Context, id string) (*directory.User, error)
	UserByEmail(ctx context.Context, email string) (*directory.User, error)
}

type Hasher interface {
	Hash(password string) (string, error)
}

// Revoker drops per-user state that must not survive a password reset.
type Revoker interface {
	Delete(ctx context.Context, userID string) error
}

type Tool struct {
	dir      Directory
	creds    credentials.Repository
	hasher   Hasher
	policy   services.PasswordPolicy
	revokers []Revoker
	in       *bufio.Reader
	out      io.Writer
	logger   logging.Logger
	now      func() time.Time
}

func NewTool(dir Directory, creds credentials.Repository, hasher Hasher, policy services.PasswordPolicy,
	revokers []Revoker, in io.Reader, out io.Writer, logger logging.Logger) *Tool {
	return &Tool{
		dir:      dir,
		creds:    creds,
		hasher:   hasher,
		policy:   policy,
		revokers: revokers,
		in:       bufio.NewReader(in),
		out:      out,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the command named by args[0].
func (t *Tool) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "set-password":
		return t.runSetPassword(ctx, args[1:])
	case "help", "-h", "-help", "--help":
		fmt.Fprintln(t.out, ErrUsage.Error())
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
	}
}

func (t *Tool) runSetPassword(ctx context.Context, args []string) error {
	var id, email string
	var fromStdin bool

	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&id, "id", "", "directory user id")
	fs.StringVar(&email, "email", "", "directory user email")
	fs.BoolVar(&fromStdin, "stdin", false, "read the password from standard input")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-id", "-email", "-stdin"})); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if (id == "") == (email == "") {
		return ErrUsage
	}

	password, err := t.readNewPassword(fromStdin)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := t.SetPassword(ctx, id, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(t.out, "password updated for %s (%s)\n", user.Username, user.ID)
	return nil
}

func (t *Tool) readNewPassword(fromStdin bool) ([]byte, error) {
	if fromStdin {
		line, err := readLine(t.in)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return []byte(line), nil
	}

	first, err := promptPassword(t.out, "New password: ")
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	second, err := promptPassword(t.out, "Repeat password: ")
	if err != nil {
		common.WipeByteArray(first)
		return nil, fmt.Errorf("reading password: %w", err)
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		common.WipeByteArray(first)
		return nil, fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}
	return first, nil
}

// SetPassword stores a hash of password for the user identified by id or
// email and revokes the user's tokens.
func (t *Tool) SetPassword(ctx context.Context, id, email, password string) (*directory.User, error) {
	if err := t.policy.Check(password); err != nil {
		return nil, err
	}

	var user *directory.User
	var err error
	if id != "" {
		user, err = t.dir.UserByID(ctx, id)
	} else {
		user, err = t.dir.UserByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	hash, err := t.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	created := now
	switch rec, err := t.creds.Get(ctx, user.ID); {
	case err == nil:
		created = rec.CreatedAt
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	if err := t.creds.Put(ctx, &credentials.Record{
		UserID:       user.ID,
		PasswordHash: hash,
		CreatedAt:    created,
		UpdatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("storing credentials: %w", err)
	}

	for _, r := range t.revokers {
		if err := r.Delete(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("revoking tokens: %w", err)
		}
	}

	t.logger.Info(ctx, "password set by operator", "user_id", user.ID)
	return user, nil
}

package authctl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/authserver"
	"github.com/dmitrijs2005/gophauth/internal/authserver/config"
	"github.com/dmitrijs2005/gophauth/internal/authserver/credentials"
	"github.com/dmitrijs2005/gophauth/internal/authserver/directory"
	"github.com/dmitrijs2005/gophauth/internal/authserver/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/authserver/sessions"
	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Open connects to the auth server's backends as configured in c. The
// returned func releases them.
func Open(ctx context.Context, c *config.Config, in io.Reader, out io.Writer, logger logging.Logger) (*Tool, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if c.StoreBackend == config.StoreMemory {
		logger.Warn(ctx, "memory store selected: changes are lost when authctl exits")
	}

	store, err := authserver.OpenStore(ctx, c)
	if err != nil {
		return nil, nil, fmt.Errorf("store init error: %w", err)
	}

	creds, db, err := authserver.OpenCredentials(ctx, c, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("credentials init error: %w", err)
	}

	closeFn := func() error {
		errs := []error{store.Close()}
		if db != nil {
			errs = append(errs, db.Close())
		}
		return errors.Join(errs...)
	}

	codec, err := tokens.NewCodec([]byte(c.SecretKey), c.Algorithm, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	revokers := []Revoker{
		refreshtokens.NewRegistry(store, codec, c.RefreshKeyPrefix, c.RefreshTokenValidityDuration),
		sessions.NewStore(store, c.SessionKeyPrefix, c.AccessTokenValidityDuration),
	}

	tool := NewTool(
		directory.NewClient(c.UserServiceURL, c.UserServiceTimeout, nil),
		creds,
		credentials.NewHasher(c.BcryptCost),
		authserver.NewPasswordPolicy(c),
		revokers,
		in, out,
		logger.With("module", "authctl"),
	)
	return tool, closeFn, nil
}

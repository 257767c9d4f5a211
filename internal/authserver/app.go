// Package authserver wires the auth server: it builds the stores named by
// the configuration, the token lifecycle manager and the GraphQL endpoint,
// and runs them until the process is signalled to stop.
package authserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/authserver/config"
	"github.com/dmitrijs2005/gophauth/internal/authserver/credentials"
	"github.com/dmitrijs2005/gophauth/internal/authserver/directory"
	"github.com/dmitrijs2005/gophauth/internal/authserver/graph"
	"github.com/dmitrijs2005/gophauth/internal/authserver/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/authserver/services"
	"github.com/dmitrijs2005/gophauth/internal/authserver/sessions"
	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/httpx"
	"github.com/dmitrijs2005/gophauth/internal/kvstore"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const serviceName = "auth-service"

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   kvstore.Store
	db      *sql.DB
	handler http.Handler
}

// NewApp connects to the configured backends and assembles the HTTP handler.
// Call Close to release the connections if Run is never called.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: c, logger: logger}

	store, err := OpenStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	app.store = store

	creds, db, err := OpenCredentials(ctx, c, store)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("credentials init error: %w", err)
	}
	app.db = db

	codec, err := tokens.NewCodec([]byte(c.SecretKey), c.Algorithm, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dir := directory.NewClient(c.UserServiceURL, c.UserServiceTimeout, nil)

	svc := services.NewAuthService(
		dir,
		codec,
		refreshtokens.NewRegistry(store, codec, c.RefreshKeyPrefix, c.RefreshTokenValidityDuration),
		sessions.NewStore(store, c.SessionKeyPrefix, c.AccessTokenValidityDuration),
		creds,
		credentials.NewHasher(c.BcryptCost),
		NewPasswordPolicy(c),
		logger.With("module", "auth_service"),
		services.WithMetrics(services.NewMetrics(reg)),
	)

	schema, err := graph.NewSchema(graph.NewResolver(svc, store, dir, logger))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("graphql schema: %w", err)
	}

	router := httpx.NewRouter(logger, httpx.RouterOptions{
		Service:        serviceName,
		AllowedOrigins: c.AllowedOrigins,
		Gatherer:       reg,
		Checks: []httpx.Check{
			{Name: "store", Ping: store.Ping},
			{Name: "user_service", Ping: dir.Ping},
		},
	})
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "graphql": "/graphql"})
	})
	router.POST("/graphql", graph.Authenticate(svc), httpx.GraphQL(schema))

	app.handler = router

	logger.Info(ctx, "rate limits configured (not enforced)",
		"login_per_minute", c.LoginRateLimit,
		"register_per_minute", c.RegisterRateLimit)

	return app, nil
}

// OpenStore connects to the KV store named by c.StoreBackend.
func OpenStore(ctx context.Context, c *config.Config) (kvstore.Store, error) {
	switch c.StoreBackend {
	case config.StoreRedis:
		return kvstore.NewRedisStore(ctx, kvstore.RedisOptions{
			URL:          c.RedisURL,
			DialTimeout:  c.RedisTimeout,
			ReadTimeout:  c.RedisTimeout,
			WriteTimeout: c.RedisTimeout,
		})
	case config.StoreMemory:
		return kvstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

// OpenCredentials builds the credential repository named by
// c.CredentialBackend. The returned *sql.DB is nil unless the backend is
// postgres; the caller closes it.
func OpenCredentials(ctx context.Context, c *config.Config, store kvstore.Store) (credentials.Repository, *sql.DB, error) {
	switch c.CredentialBackend {
	case config.CredentialsKV:
		return credentials.NewKVRepository(store, c.PasswordKeyPrefix), nil, nil
	case config.CredentialsPostgres:
		db, err := credentials.Open(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := credentials.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return credentials.NewPostgresRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", c.CredentialBackend)
	}
}

// NewPasswordPolicy returns the complexity rules configured in c. Lowercase
// letters are always required.
func NewPasswordPolicy(c *config.Config) services.PasswordPolicy {
	return services.PasswordPolicy{
		MinLength:      c.PasswordMinLength,
		RequireUpper:   c.PasswordRequireUpper,
		RequireLower:   true,
		RequireNumbers: c.PasswordRequireNumbers,
		RequireSpecial: c.PasswordRequireSpecial,
	}
}

// Handler returns the root HTTP handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then closes the backing stores.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpx.NewServer(app.config.EndpointAddrHTTP, app.handler, app.logger).Run(gctx)
	})

	err := g.Wait()
	if cerr := app.Close(); cerr != nil {
		app.logger.Error(ctx, "closing stores", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}

// Close releases the store and database connections.
func (app *App) Close() error {
	var errs []error
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

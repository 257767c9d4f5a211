// Package userserver wires the user directory service: the document store,
// the optional avatar presigner and the GraphQL endpoint.
package userserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/httpx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/userserver/avatars"
	"github.com/dmitrijs2005/gophauth/internal/userserver/config"
	"github.com/dmitrijs2005/gophauth/internal/userserver/graph"
	"github.com/dmitrijs2005/gophauth/internal/userserver/users"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"
)

const serviceName = "user-service"

type App struct {
	config  *config.Config
	logger  logging.Logger
	client  *mongo.Client
	handler http.Handler
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: c, logger: logger}

	repo, err := app.openRepository(ctx)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("store init error: %w", err)
	}

	opts := []users.Option{}
	if c.AvatarsEnabled() {
		p, err := avatars.NewPresigner(ctx, avatars.Options{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Expiry:       c.AvatarURLExpiry,
		})
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("avatar presigner: %w", err)
		}
		opts = append(opts, users.WithAvatars(p))
	} else {
		logger.Info(ctx, "avatar uploads disabled: no bucket configured")
	}

	svc := users.NewService(repo, logger.With("module", "user_service"), c.DefaultPageSize, c.MaxPageSize, opts...)

	schema, err := graph.NewSchema(graph.NewResolver(svc, logger))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("graphql schema: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := httpx.NewRouter(logger, httpx.RouterOptions{
		Service:        serviceName,
		AllowedOrigins: c.AllowedOrigins,
		Gatherer:       reg,
		Checks:         []httpx.Check{{Name: "database", Ping: svc.Ping}},
	})
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "graphql": "/graphql"})
	})
	router.POST("/graphql", httpx.GraphQL(schema))

	app.handler = router
	return app, nil
}

func (app *App) openRepository(ctx context.Context) (users.Repository, error) {
	switch app.config.StoreBackend {
	case config.StoreMongo:
		client, err := users.Connect(ctx, app.config.MongoURI, app.config.MongoTimeout)
		if err != nil {
			return nil, err
		}
		app.client = client

		repo := users.NewMongoRepository(client.Database(app.config.DatabaseName))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		app.logger.Info(ctx, "connected to mongodb", "database", app.config.DatabaseName)
		return repo, nil
	case config.StoreMemory:
		return users.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", app.config.StoreBackend)
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

// Run serves HTTP until ctx is cancelled or a termination signal arrives.
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
		app.logger.Error(ctx, "closing database", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}

// Close disconnects from MongoDB.
func (app *App) Close() error {
	var errs []error
	if app.client != nil {
		errs = append(errs, app.client.Disconnect(context.Background()))
		app.client = nil
	}
	return errors.Join(errs...)
}

// Package httpx holds the HTTP plumbing shared by the auth and user servers:
// the gin router with its middleware, operational endpoints and the server
// lifecycle.
package httpx

import (
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Service        string
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
	Checks         []Check
}

// NewRouter builds a gin engine with recovery, request ids, request logging
// and CORS, plus the /ping, /health and /metrics endpoints.
func NewRouter(logger logging.Logger, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(logger))
	r.Use(CORS(opts.AllowedOrigins))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", HealthHandler(opts.Service, opts.Checks...))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

// GraphQL serves schema over POST, reading the request context set up by
// the preceding middleware.
func GraphQL(schema *graphql.Schema) gin.HandlerFunc {
	return gin.WrapH(&relay.Handler{Schema: schema})
}

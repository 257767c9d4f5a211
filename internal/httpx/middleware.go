package httpx

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request once the handler chain is done.
// Probe endpoints are logged at debug level.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", RequestIDFromContext(ctx),
		}

		switch c.Request.URL.Path {
		case "/health", "/metrics", "/ping":
			logger.Debug(ctx, "request", args...)
		default:
			logger.Info(ctx, "request", args...)
		}
	}
}

// CORS allows cross-origin requests from the listed origins only.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o != "" {
			allowed[o] = true
		}
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowed[origin]
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", common.AuthorizationHeader, common.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", common.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check is a named dependency probe used by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

// HealthHandler runs every check and answers 200 when all pass and 503
// otherwise, listing the outcome of each check.
func HealthHandler(service string, checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make(map[string]string, len(checks))
		healthy := true

		for _, chk := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
			err := chk.Ping(ctx)
			cancel()

			if err != nil {
				healthy = false
				results[chk.Name] = err.Error()
				continue
			}
			results[chk.Name] = "ok"
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":  status,
			"service": service,
			"checks":  results,
		})
	}
}

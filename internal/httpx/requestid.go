package httpx

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

type ctxKey string

const requestIDKey ctxKey = "requestID"

// maxInboundRequestID bounds request ids accepted from callers.
const maxInboundRequestID = 64

// NewRequestID returns a new ULID string (26 chars).
func NewRequestID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RequestID tags every request with an id. An id supplied by the caller in
// common.RequestIDHeader is kept; otherwise a fresh ULID is generated. The id
// is echoed in the response and stored in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeader)
		if id == "" || len(id) > maxInboundRequestID {
			var err error
			if id, err = NewRequestID(time.Now()); err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}

		c.Header(common.RequestIDHeader, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

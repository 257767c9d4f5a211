package graph

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/authserver/tokens"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/gin-gonic/gin"
)

type ctxKey string

const (
	claimsKey ctxKey = "claims"
	clientKey ctxKey = "client"
)

type clientInfo struct {
	ip        string
	userAgent string
}

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*tokens.Claims, error)
}

// Authenticate stores the verified claims of a bearer access token in the
// request context. Requests without a valid token pass through unchanged:
// each resolver decides whether it needs an authenticated caller.
func Authenticate(v AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), clientKey, clientInfo{
			ip:        c.ClientIP(),
			userAgent: c.Request.UserAgent(),
		})

		if token, ok := bearerToken(c.GetHeader(common.AuthorizationHeader)); ok {
			if claims, err := v.VerifyAccess(token); err == nil {
				ctx = context.WithValue(ctx, claimsKey, claims)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(common.BearerPrefix):]), true
}

// ClaimsFromContext returns the caller's access token claims, if any.
func ClaimsFromContext(ctx context.Context) (*tokens.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*tokens.Claims)
	return c, ok
}

func clientFromContext(ctx context.Context) clientInfo {
	ci, _ := ctx.Value(clientKey).(clientInfo)
	return ci
}

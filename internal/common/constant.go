// Package common contains shared constants and sentinel errors used across
// the auth and user services.
package common

// AuthorizationHeader carries the bearer access token on inbound requests.
const AuthorizationHeader = "Authorization"

// BearerPrefix precedes the access token inside AuthorizationHeader.
const BearerPrefix = "Bearer "

// TokenTypeBearer is reported to clients alongside issued token pairs.
const TokenTypeBearer = "bearer"

// RequestIDHeader is echoed back on every HTTP response.
const RequestIDHeader = "X-Request-ID"

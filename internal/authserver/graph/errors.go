package graph

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// codedError is returned from resolvers that fail at the GraphQL level.
// graphql-go copies Extensions into the response error.
type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string { return e.msg }

func (e *codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

var errNotAuthenticated = &codedError{code: common.CodeInvalidToken, msg: "not authenticated"}

// describe maps err onto a client-facing code and message. Internal details
// are logged, not returned.
func describe(ctx context.Context, logger logging.Logger, op string, err error) (string, string) {
	code := common.Code(err)

	switch code {
	case common.CodeValidation:
		return code, common.Detail(err, common.ErrValidation)
	case common.CodeAlreadyExists:
		return code, common.Detail(err, common.ErrAlreadyExists)
	case common.CodeNotFound:
		// unknown users look like bad passwords at login
		if op == "login" {
			return code, "invalid credentials"
		}
		return code, "user not found"
	case common.CodeInvalidCredentials:
		return code, "invalid credentials"
	case common.CodeInactive:
		return code, "account is not active"
	case common.CodeInvalidToken:
		return code, "invalid or expired token"
	case common.CodeUnavailable:
		logger.Warn(ctx, op+" failed", "error", err)
		return code, "service temporarily unavailable"
	default:
		logger.Error(ctx, op+" failed", "error", err)
		return common.CodeInternal, "internal error"
	}
}

package graph

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string { return e.msg }

func (e *codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

// describe maps err onto a client-facing code and message.
func describe(ctx context.Context, logger logging.Logger, op string, err error) (string, string) {
	code := common.Code(err)

	switch code {
	case common.CodeValidation:
		return code, common.Detail(err, common.ErrValidation)
	case common.CodeAlreadyExists:
		return code, common.Detail(err, common.ErrAlreadyExists)
	case common.CodeNotFound:
		return code, "user not found"
	case common.CodeUnavailable:
		logger.Warn(ctx, op+" failed", "error", err)
		return code, "service temporarily unavailable"
	default:
		logger.Error(ctx, op+" failed", "error", err)
		return common.CodeInternal, "internal error"
	}
}

func asGraphQLError(ctx context.Context, logger logging.Logger, op string, err error) error {
	code, msg := describe(ctx, logger, op, err)
	return &codedError{code: code, msg: msg}
}

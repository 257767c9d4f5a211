package users

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/go-playground/validator/v10"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phoneRe    = regexp.MustCompile(`^\+?1?\d{9,15}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return v
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters long", name, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters long", name, fe.Param()))
		case "email":
			msgs = append(msgs, "invalid email address")
		case "username":
			msgs = append(msgs, "username can only contain letters, numbers, and underscores")
		case "eth_addr":
			msgs = append(msgs, "invalid ethereum address format")
		case "phone":
			msgs = append(msgs, "invalid phone number format")
		case "url":
			msgs = append(msgs, name+" must be a valid URL")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", name, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(msgs, "; "))
}

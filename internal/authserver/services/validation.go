package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/go-playground/validator/v10"
)

// specialChars is the set of characters that satisfy the special character rule.
const specialChars = `!@#$%^&*(),.?":{}|<>`

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return v
}

// PasswordPolicy describes the complexity rules for new passwords.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumbers bool
	RequireSpecial bool
}

// Check returns a wrapped common.ErrValidation naming the first violated rule.
func (p PasswordPolicy) Check(password string) error {
	if utf8.RuneCountInString(password) < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters long", common.ErrValidation, p.MinLength)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return fmt.Errorf("%w: password must contain at least one uppercase letter", common.ErrValidation)
	case p.RequireLower && !lower:
		return fmt.Errorf("%w: password must contain at least one lowercase letter", common.ErrValidation)
	case p.RequireNumbers && !digit:
		return fmt.Errorf("%w: password must contain at least one number", common.ErrValidation)
	case p.RequireSpecial && !special:
		return fmt.Errorf("%w: password must contain at least one special character", common.ErrValidation)
	}
	return nil
}

// validateStruct runs the struct tag rules of v and folds the failures into
// a single common.ErrValidation.
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
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", name, fe.Param())
	case "email":
		return "invalid email address"
	case "username":
		return "username can only contain letters, numbers, and underscores"
	case "eth_addr":
		return "invalid ethereum address format"
	case "eqfield":
		return "passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

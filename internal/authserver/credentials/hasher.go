package credentials

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and checks passwords with bcrypt.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password. Passwords longer than 72 bytes
// are rejected with common.ErrValidation.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", common.ErrValidation)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare returns common.ErrInvalidCredentials unless password matches hash.
func (h *Hasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidCredentials, err)
	}
	return nil
}

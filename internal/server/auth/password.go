package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the user does not exist so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gophmaps-dummy-password"), bcrypt.DefaultCost)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("hash password: %w", common.ErrValidation)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// CheckPassword returns ErrInvalidCredentials unless password matches hash.
// A nil hash is compared against a dummy.
func CheckPassword(hash []byte, password string) error {
	if hash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return common.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return common.ErrInvalidCredentials
	}
	return nil
}

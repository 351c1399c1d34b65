package validation

import (
	"errors"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be less than 256 characters")
)

// ValidatePassword enforces the password length bounds [8, 255].
// Strength scoring is left to the client; the KDF is length-agnostic.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}

	if len(password) > 255 {
		return ErrPasswordTooLong
	}

	return nil
}

package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// PasswordHasher is the KDF capability the auth flows depend on. Any
// implementation with equivalent hardness is substitutable.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

// scrypt parameters: memory-hard, interactive-login strength.
const (
	scryptN       = 16384
	scryptR       = 16
	scryptP       = 1
	scryptKeyLen  = 64
	scryptSaltLen = 16
)

// ScryptHasher hashes passwords with scrypt, encoded as "salthex:keyhex".
type ScryptHasher struct{}

func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{}
}

func (h *ScryptHasher) Hash(password string) (string, error) {
	salt := make([]byte, scryptSaltLen)
	_, err := rand.Read(salt)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// Verify recomputes the key and compares in constant time. A malformed hash
// verifies false rather than erroring, so callers surface the same uniform
// credential failure either way.
func (h *ScryptHasher) Verify(hash, password string) (bool, error) {
	saltHex, keyHex, found := strings.Cut(hash, ":")
	if !found {
		return false, errors.New("malformed password hash")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, errors.New("malformed password hash")
	}
	expected, err := hex.DecodeString(keyHex)
	if err != nil {
		return false, errors.New("malformed password hash")
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(expected))
	if err != nil {
		return false, fmt.Errorf("failed to derive key: %w", err)
	}

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

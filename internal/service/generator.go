package service

import (
	"crypto/rand"
	"encoding/hex"
)

// VerificationCodeSize is the number of digits in an email verification code.
const VerificationCodeSize = 4

// GenerateVerificationCode produces a fixed-length numeric code. Each digit
// is drawn from a cryptographically secure source and mapped into [1,9] so
// codes never contain a zero.
func GenerateVerificationCode() (string, error) {
	randomValues := make([]byte, VerificationCodeSize)
	_, err := rand.Read(randomValues)
	if err != nil {
		return "", err
	}

	digits := make([]byte, VerificationCodeSize)
	for i, v := range randomValues {
		digits[i] = '1' + v%9
	}
	return string(digits), nil
}

// GenerateSessionID returns a 256-bit random bearer identifier, hex encoded.
func GenerateSessionID() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

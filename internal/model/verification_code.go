package model

import (
	"time"
)

// VerificationCode is a short-lived numeric one-time code proving email
// ownership. At most one live code exists per user.
type VerificationCode struct {
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	Retry     int       `db:"retry"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (c *VerificationCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

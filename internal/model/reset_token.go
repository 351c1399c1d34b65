package model

import (
	"time"
)

// ResetToken authorizes a single password change. Its ID doubles as the
// public link component sent by email. At most one live token exists per user.
type ResetToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (t *ResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

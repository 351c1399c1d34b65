package model

import (
	"time"
)

type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`

	// Fresh marks a session that was just issued or rotated, meaning
	// the caller must (re)send the session cookie.
	Fresh bool `db:"-"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

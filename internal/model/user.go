package model

import (
	"time"
)

type User struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	PasswordHash  *string   `db:"password_hash"` // Nullable for OAuth-only accounts
	EmailVerified bool      `db:"email_verified"`
	Username      *string   `db:"username"`
	AvatarURL     *string   `db:"avatar_url"`
	Banned        bool      `db:"banned"`
	CreatedAt     time.Time `db:"created_at"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

package repository

import (
	"github.com/jmoiron/sqlx"
)

// AtomicRepository holds the handful of multi-statement writes that must be
// all-or-nothing. Everything else goes through the per-entity repositories.
type AtomicRepository interface {
	// MarkEmailVerified sets email_verified and deletes the live verification
	// code in one transaction. Both happen or neither.
	MarkEmailVerified(userID, email string) error
	// ReplacePassword updates the password hash and deletes the consumed
	// reset token in one transaction. Both happen or neither.
	ReplacePassword(userID, passwordHash, tokenID string) error
	// RollbackSignup undoes a signup whose verification email could not be
	// delivered: the code row and the user row are removed together.
	RollbackSignup(userID string) error
}

type atomicRepository struct {
	db *sqlx.DB
}

func NewAtomicRepository(db *sqlx.DB) AtomicRepository {
	return &atomicRepository{db: db}
}

func (r *atomicRepository) MarkEmailVerified(userID, email string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE users SET email_verified = $1 WHERE id = $2`, true, userID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DELETE FROM email_verification_codes WHERE user_id = $1 AND email = $2`, userID, email)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *atomicRepository) ReplacePassword(userID, passwordHash, tokenID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DELETE FROM reset_password_tokens WHERE id = $1`, tokenID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *atomicRepository) RollbackSignup(userID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM email_verification_codes WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

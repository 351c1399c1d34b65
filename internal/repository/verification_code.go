package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/serrf0f/gatehouse/internal/model"
)

var ErrCodeNotFound = errors.New("verification code not found")

type VerificationCodeRepository interface {
	// Replace deletes any prior code for the user and inserts the new one,
	// keeping at most one live code per user.
	Replace(code *model.VerificationCode) error
	ByUserAndEmail(userID, email string) (*model.VerificationCode, error)
	IncrementRetry(userID, email string) error
	Delete(userID, email string) error
	DeleteByUser(userID string) error
}

type verificationCodeRepository struct {
	db *sqlx.DB
}

func NewVerificationCodeRepository(db *sqlx.DB) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

func (r *verificationCodeRepository) Replace(code *model.VerificationCode) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM email_verification_codes WHERE user_id = $1`, code.UserID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO email_verification_codes (user_id, email, code, retry, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, code.UserID, code.Email, code.Code, code.Retry, code.ExpiresAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *verificationCodeRepository) ByUserAndEmail(userID, email string) (*model.VerificationCode, error) {
	code := &model.VerificationCode{}
	query := `SELECT * FROM email_verification_codes WHERE user_id = $1 AND email = $2`

	err := r.db.Get(code, query, userID, email)
	if err == sql.ErrNoRows {
		return nil, ErrCodeNotFound
	}

	return code, err
}

func (r *verificationCodeRepository) IncrementRetry(userID, email string) error {
	query := `UPDATE email_verification_codes SET retry = retry + 1 WHERE user_id = $1 AND email = $2`

	_, err := r.db.Exec(query, userID, email)
	return err
}

func (r *verificationCodeRepository) Delete(userID, email string) error {
	query := `DELETE FROM email_verification_codes WHERE user_id = $1 AND email = $2`

	_, err := r.db.Exec(query, userID, email)
	return err
}

func (r *verificationCodeRepository) DeleteByUser(userID string) error {
	query := `DELETE FROM email_verification_codes WHERE user_id = $1`

	_, err := r.db.Exec(query, userID)
	return err
}

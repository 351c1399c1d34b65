package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/serrf0f/gatehouse/internal/model"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRepository interface {
	// Replace deletes any prior token for the user and inserts the new one,
	// keeping at most one live token per user.
	Replace(token *model.ResetToken) error
	ByID(id string) (*model.ResetToken, error)
	Delete(id string) error
}

type resetTokenRepository struct {
	db *sqlx.DB
}

func NewResetTokenRepository(db *sqlx.DB) ResetTokenRepository {
	return &resetTokenRepository{db: db}
}

func (r *resetTokenRepository) Replace(token *model.ResetToken) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM reset_password_tokens WHERE user_id = $1`, token.UserID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO reset_password_tokens (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		token.ID, token.UserID, token.ExpiresAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *resetTokenRepository) ByID(id string) (*model.ResetToken, error) {
	token := &model.ResetToken{}
	query := `SELECT * FROM reset_password_tokens WHERE id = $1`

	err := r.db.Get(token, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrResetTokenNotFound
	}

	return token, err
}

func (r *resetTokenRepository) Delete(id string) error {
	query := `DELETE FROM reset_password_tokens WHERE id = $1`

	_, err := r.db.Exec(query, id)
	return err
}

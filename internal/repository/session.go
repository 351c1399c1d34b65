package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/serrf0f/gatehouse/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(session *model.Session) error
	ByID(id string) (*model.Session, error)
	Rotate(oldID string, session *model.Session) error
	Delete(id string) error
	DeleteByUser(userID string) error
	DeleteExpired() (int64, error)
}

type sessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.Session) error {
	query := `INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(query, session.ID, session.UserID, session.ExpiresAt)
	return err
}

func (r *sessionRepository) ByID(id string) (*model.Session, error) {
	session := &model.Session{}
	query := `SELECT * FROM sessions WHERE id = $1`

	err := r.db.Get(session, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}

	return session, err
}

// Rotate replaces an existing session row with a new identifier and expiry
// in a single transaction, so a validated session never disappears mid-swap.
func (r *sessionRepository) Rotate(oldID string, session *model.Session) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM sessions WHERE id = $1`, oldID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		session.ID, session.UserID, session.ExpiresAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Delete is idempotent: removing an absent session is not an error.
func (r *sessionRepository) Delete(id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	_, err := r.db.Exec(query, id)
	return err
}

func (r *sessionRepository) DeleteByUser(userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1`

	_, err := r.db.Exec(query, userID)
	return err
}

// DeleteExpired removes sessions past their expiry. Expired sessions are
// already rejected at validation time, so this is an optional maintenance
// operation (e.g. a periodic job) to keep the table small.
func (r *sessionRepository) DeleteExpired() (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	result, err := r.db.Exec(query, time.Now())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/serrf0f/gatehouse/internal/model"
)

var ErrOAuthAccountNotFound = errors.New("oauth account not found")

type OAuthAccountRepository interface {
	Create(account *model.OAuthAccount) error
	ByProvider(providerID, providerUserID string) (*model.OAuthAccount, error)
}

type oauthAccountRepository struct {
	db *sqlx.DB
}

func NewOAuthAccountRepository(db *sqlx.DB) OAuthAccountRepository {
	return &oauthAccountRepository{db: db}
}

func (r *oauthAccountRepository) Create(account *model.OAuthAccount) error {
	query := `INSERT INTO oauth_accounts (provider_id, provider_user_id, user_id) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(query, account.ProviderID, account.ProviderUserID, account.UserID)
	return err
}

func (r *oauthAccountRepository) ByProvider(providerID, providerUserID string) (*model.OAuthAccount, error) {
	account := &model.OAuthAccount{}
	query := `SELECT * FROM oauth_accounts WHERE provider_id = $1 AND provider_user_id = $2`

	err := r.db.Get(account, query, providerID, providerUserID)
	if err == sql.ErrNoRows {
		return nil, ErrOAuthAccountNotFound
	}

	return account, err
}

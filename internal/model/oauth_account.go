package model

// OAuthAccount links an external identity (provider, provider user id)
// to a local user.
type OAuthAccount struct {
	ProviderID     string `db:"provider_id"`
	ProviderUserID string `db:"provider_user_id"`
	UserID         string `db:"user_id"`
}

const (
	OAuthProviderGoogle = "google"
	OAuthProviderGitHub = "github"
)

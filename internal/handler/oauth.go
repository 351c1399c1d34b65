package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/serrf0f/gatehouse/internal/config"
	"github.com/serrf0f/gatehouse/internal/ctxkeys"
	"github.com/serrf0f/gatehouse/internal/middleware"
	"github.com/serrf0f/gatehouse/internal/model"
	"github.com/serrf0f/gatehouse/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

type oauthHandler struct {
	authService       *service.AuthService
	sessionService    *service.SessionService
	googleOAuthConfig *oauth2.Config
	githubOAuthConfig *oauth2.Config
}

func NewOAuthHandler(authService *service.AuthService, sessionService *service.SessionService, cfg *config.Config) *oauthHandler {
	return &oauthHandler{
		authService:    authService,
		sessionService: sessionService,
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/google/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		githubOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/github/callback",
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// GoogleAuth redirects user to Google OAuth consent screen
func (h *oauthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	h.startOAuth(w, r, h.googleOAuthConfig)
}

// GitHubAuth redirects user to GitHub OAuth consent screen
func (h *oauthHandler) GitHubAuth(w http.ResponseWriter, r *http.Request) {
	h.startOAuth(w, r, h.githubOAuthConfig)
}

func (h *oauthHandler) startOAuth(w http.ResponseWriter, r *http.Request, oauthConfig *oauth2.Config) {
	// Generate secure state token for CSRF protection
	state := generateOAuthState()

	cfg := ctxkeys.Config(r.Context())
	isProduction := cfg != nil && cfg.IsProduction()

	// Store state in secure cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction, // Secure flag based on APP_ENV (safer than r.TLS behind load balancers)
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	url := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback handles the OAuth callback from Google
func (h *oauthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	token, ok := h.finishOAuth(w, r, h.googleOAuthConfig, "google")
	if !ok {
		return
	}

	client := h.googleOAuthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		slog.Error("failed to get google user info", "error", err)
		oauthFailed(w)
		return
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	var userInfo struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	err = json.NewDecoder(resp.Body).Decode(&userInfo)
	if err != nil {
		slog.Error("failed to decode google user info", "error", err)
		oauthFailed(w)
		return
	}

	h.completeOAuth(w, r, model.OAuthProviderGoogle, service.OAuthProfile{
		ProviderUserID: userInfo.ID,
		Email:          userInfo.Email,
		Username:       userInfo.Name,
		AvatarURL:      userInfo.Picture,
	})
}

// GitHubCallback handles the OAuth callback from GitHub
func (h *oauthHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	token, ok := h.finishOAuth(w, r, h.githubOAuthConfig, "github")
	if !ok {
		return
	}

	client := h.githubOAuthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		slog.Error("failed to get github user info", "error", err)
		oauthFailed(w)
		return
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	var userInfo struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	err = json.NewDecoder(resp.Body).Decode(&userInfo)
	if err != nil {
		slog.Error("failed to decode github user info", "error", err)
		oauthFailed(w)
		return
	}

	// GitHub API may not return email in main response if it's private
	// Need to fetch from /user/emails endpoint
	if userInfo.Email == "" {
		emailResp, err := client.Get("https://api.github.com/user/emails")
		if err != nil {
			slog.Error("failed to get github user emails", "error", err)
			oauthFailed(w)
			return
		}
		defer func() {
			closeErr := emailResp.Body.Close()
			if closeErr != nil {
				slog.Error("failed to close email response body", "error", closeErr)
			}
		}()

		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		err = json.NewDecoder(emailResp.Body).Decode(&emails)
		if err != nil {
			slog.Error("failed to decode github emails", "error", err)
			oauthFailed(w)
			return
		}

		// Find primary verified email
		for _, e := range emails {
			if e.Primary && e.Verified {
				userInfo.Email = e.Email
				break
			}
		}
	}

	if userInfo.Email == "" {
		slog.Warn("github oauth: no email found")
		respondError(w, http.StatusBadRequest, fieldErrors{Message: "Could not retrieve a verified email from GitHub."})
		return
	}

	h.completeOAuth(w, r, model.OAuthProviderGitHub, service.OAuthProfile{
		ProviderUserID: fmt.Sprintf("%d", userInfo.ID),
		Email:          userInfo.Email,
		Username:       userInfo.Login,
		AvatarURL:      userInfo.AvatarURL,
	})
}

// finishOAuth validates the state cookie and exchanges the code for a token.
func (h *oauthHandler) finishOAuth(w http.ResponseWriter, r *http.Request, oauthConfig *oauth2.Config, provider string) (*oauth2.Token, bool) {
	// Validate state parameter for CSRF protection
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie("oauth_state")
	if err != nil || cookie.Value != state || state == "" {
		slog.Warn("oauth state validation failed", "error", err, "provider", provider)
		oauthFailed(w)
		return nil, false
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback missing code", "provider", provider)
		oauthFailed(w)
		return nil, false
	}

	token, err := oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth token exchange failed", "error", err, "provider", provider)
		oauthFailed(w)
		return nil, false
	}

	return token, true
}

func (h *oauthHandler) completeOAuth(w http.ResponseWriter, r *http.Request, providerID string, profile service.OAuthProfile) {
	user, session, err := h.authService.SignInOAuth(providerID, profile)
	if err != nil {
		slog.Error("oauth authentication failed", "error", err, "provider", providerID)
		oauthFailed(w)
		return
	}

	http.SetCookie(w, h.sessionService.Cookie(session))

	slog.Info("user logged in with oauth", "user_id", user.ID, "provider", providerID)
	http.Redirect(w, r, middleware.ConsumeRedirectCookie(w, r), http.StatusSeeOther)
}

func oauthFailed(w http.ResponseWriter) {
	respondError(w, http.StatusBadRequest, fieldErrors{Message: "OAuth authentication failed. Please try again."})
}

// generateOAuthState creates cryptographically secure random state token for OAuth CSRF protection
func generateOAuthState() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

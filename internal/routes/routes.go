package routes

import (
	"net/http"

	"github.com/serrf0f/gatehouse/internal/app"
	"github.com/serrf0f/gatehouse/internal/handler"
	"github.com/serrf0f/gatehouse/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.SessionService)
	oauth := handler.NewOAuthHandler(app.AuthService, app.SessionService, app.Cfg)

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Auth - credential flows (rate limited)
	rateLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("POST /signup", rateLimiter(middleware.RequireGuest(auth.SignUp)))
	mux.HandleFunc("POST /signin", rateLimiter(middleware.RequireGuest(auth.SignIn)))
	mux.HandleFunc("POST /forgot-password", rateLimiter(middleware.RequireGuest(auth.ForgotPassword)))
	mux.HandleFunc("POST /reset-password/{token}", rateLimiter(middleware.RequireGuest(auth.ResetPassword)))

	// Email verification (signed in, not yet verified)
	mux.HandleFunc("POST /verify-email", rateLimiter(middleware.RequireAuth(auth.VerifyEmail)))
	mux.HandleFunc("POST /resend-code", rateLimiter(middleware.RequireAuth(auth.ResendCode)))

	// OAuth
	mux.HandleFunc("GET /auth/google", rateLimiter(middleware.RequireGuest(oauth.GoogleAuth)))
	mux.HandleFunc("GET /auth/google/callback", rateLimiter(oauth.GoogleCallback))
	mux.HandleFunc("GET /auth/github", rateLimiter(middleware.RequireGuest(oauth.GitHubAuth)))
	mux.HandleFunc("GET /auth/github/callback", rateLimiter(oauth.GitHubCallback))

	// Session
	mux.HandleFunc("POST /logout", auth.Logout)
	mux.HandleFunc("GET /me", middleware.RequireAuth(auth.Me))

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Config(app.Cfg.Sanitized()),
		middleware.RequestLogging,
		middleware.VerifyOrigin, // reject cross-origin state changes before touching sessions
		middleware.Session(app.SessionService),
	)
}

package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/serrf0f/gatehouse/internal/ctxkeys"
	"github.com/serrf0f/gatehouse/internal/service"
)

// RedirectCookieName remembers where an unauthenticated visitor was headed so
// the sign-in handler can send them back afterwards.
const RedirectCookieName = "redirect_to"

// Session resolves the session cookie once per request and memoizes the
// result in the request context. Downstream handlers read the user and
// session via ctxkeys instead of hitting the database again.
//
// Invalid or expired cookies are cleared; rotated sessions get their new
// cookie written here so the client always holds the current identifier.
func Session(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, session, err := sessions.Validate(cookie.Value)
			if err != nil {
				// Storage fault, not an invalid session. Treating the visitor
				// as anonymous here would log out every user for the duration
				// of a database outage.
				slog.Error("session validation failed", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if session == nil {
				http.SetCookie(w, sessions.BlankCookie())
				next.ServeHTTP(w, r)
				return
			}

			if session.Fresh {
				http.SetCookie(w, sessions.Cookie(session))
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			ctx = ctxkeys.WithSession(ctx, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth guards endpoints that need a signed-in user. Anonymous visitors
// are remembered via the redirect cookie and sent to sign-in. A request that
// just rotated its session is bounced back to the same URL so the fresh
// cookie is committed before any state-changing work runs. Banned users are
// refused outright.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if user == nil {
			SetRedirectCookie(w, r.URL.RequestURI())
			http.Redirect(w, r, "/signin", http.StatusSeeOther)
			return
		}

		if user.Banned {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		session := ctxkeys.Session(r.Context())
		if session != nil && session.Fresh {
			http.Redirect(w, r, r.URL.RequestURI(), http.StatusTemporaryRedirect)
			return
		}

		next(w, r)
	}
}

// RequireGuest guards endpoints that only make sense signed out, like the
// sign-in and sign-up forms.
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// SetRedirectCookie records the URL to return to after sign-in.
func SetRedirectCookie(w http.ResponseWriter, target string) {
	if !isSafeRedirect(target) {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RedirectCookieName,
		Value:    url.QueryEscape(target),
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ConsumeRedirectCookie returns the recorded post-sign-in destination and
// clears the cookie. Falls back to "/" when nothing usable was recorded.
func ConsumeRedirectCookie(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(RedirectCookieName)
	if err != nil || cookie.Value == "" {
		return "/"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     RedirectCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	target, err := url.QueryUnescape(cookie.Value)
	if err != nil || !isSafeRedirect(target) {
		return "/"
	}
	return target
}

// isSafeRedirect only accepts site-relative paths, never absolute URLs or
// protocol-relative ones, to avoid open redirects.
func isSafeRedirect(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}

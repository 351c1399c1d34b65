package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
)

// VerifyOrigin rejects state-changing requests whose Origin header does not
// match the request host (CSRF defense). Safe methods pass through. The
// allow-list is derived from the request itself: Host, or X-Forwarded-Host
// behind a proxy.
func VerifyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		host := r.Host
		if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
			host = forwarded
		}

		if origin == "" || host == "" || !originMatchesHost(origin, host) {
			slog.Warn("origin verification failed",
				"origin", origin,
				"host", host,
				"path", r.URL.Path,
				"ip", GetClientIP(r),
			)
			w.WriteHeader(http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originMatchesHost(origin, host string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return parsed.Host == host
}

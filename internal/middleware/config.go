package middleware

import (
	"net/http"

	"github.com/serrf0f/gatehouse/internal/config"
	"github.com/serrf0f/gatehouse/internal/ctxkeys"
)

// Config injects the application config into the request context
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), cfg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

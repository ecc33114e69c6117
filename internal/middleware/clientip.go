package middleware

import (
	"net/http"

	"github.com/benvon/portfolio-chat/internal/request"
)

// ClientIP resolves the caller's address once per request for the limiters, audit log and
// handlers. Forwarding headers count only when trustProxyHeaders is set, which is right only
// behind a proxy or CDN that overwrites them.
func ClientIP(trustProxyHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := request.ResolveClientIP(r, trustProxyHeaders)
			next.ServeHTTP(w, r.WithContext(request.WithClientIP(r.Context(), ip)))
		})
	}
}

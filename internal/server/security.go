// security.go - Response hardening headers.
package server

import "net/http"

// securityHeadersMiddleware sets the headers every API response carries.
// Responses hold metadata about encrypted documents, so caches anywhere on
// the path must not retain them.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

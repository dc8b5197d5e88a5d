package server

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const adminRealm = `Basic realm="digitduel admin"`

// adminAuthMiddleware checks the HTTP Basic password against a bcrypt hash.
// The username is ignored.
func adminAuthMiddleware(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, password, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", adminRealm)
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyAuth rejects requests that do not present apiKey. The key is read
// from X-API-Key, then an Authorization bearer token, then the key query
// parameter so a plain link can carry it. An empty apiKey disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch got := requestAPIKey(r); {
			case got == "":
				writeJSONError(w, http.StatusUnauthorized, "missing API key")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// requestAPIKey returns the first non-empty key the request presents.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}
	return r.URL.Query().Get("key")
}

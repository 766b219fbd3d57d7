package auth

import (
	"net/http"
	"strings"
)

// CookieName is the HTTP-only cookie carrying the session token.
const CookieName = "jwt"

// TokenFromRequest extracts a session token from, in order:
// the jwt cookie, an "Authorization: Bearer" header, or a "token" query parameter.
// The query parameter exists for websocket handshakes, where browsers cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

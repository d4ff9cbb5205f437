package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

// BearerToken returns the access token from the Authorization header,
// falling back to the named cookie.
func BearerToken(r *http.Request, cookie string) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, token, ok := strings.Cut(authz, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie == "" {
		return ""
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

// Authn rejects requests without a valid access token. The token may come
// from the Authorization header or the given cookie.
func Authn(v jwtx.Verifier, cookie string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r, cookie)
			if raw == "" {
				writeBearerError(w, "missing access token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("access token rejected", "err", err)
				writeBearerError(w, "invalid or expired access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthn attaches claims when a valid token is present and lets
// anonymous or invalid callers through unchanged.
func OptionalAuthn(v jwtx.Verifier, cookie string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := BearerToken(r, cookie); raw != "" {
				if claims, err := v.Verify(raw); err == nil {
					r = r.WithContext(ContextWithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RFC 6750 challenge with the standard envelope as body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "Unauthorized request")
}

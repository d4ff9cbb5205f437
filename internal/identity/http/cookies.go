package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

func (r *Router) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.opts.hardened(),
		SameSite: http.SameSiteLaxMode,
	}
	if r.opts.hardened() {
		c.SameSite = http.SameSiteStrictMode
	}
	if value == "" {
		c.MaxAge = -1
		return c
	}
	c.Expires = expires.UTC()
	return c
}

func (r *Router) setAuthCookies(w http.ResponseWriter, pair domain.TokenPair) {
	http.SetCookie(w, r.cookie(AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, r.cookie(RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (r *Router) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, r.cookie(AccessTokenCookie, "", time.Time{}))
	http.SetCookie(w, r.cookie(RefreshTokenCookie, "", time.Time{}))
}

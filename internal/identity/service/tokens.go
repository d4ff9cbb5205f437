package service

import (
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
)

// TokenIssuer mints access and refresh tokens. It never touches storage;
// persisting the refresh fingerprint is the caller's job.
type TokenIssuer struct {
	Access  *jwtx.KeyManager
	Refresh *jwtx.KeyManager
	Issuer  string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

func (t *TokenIssuer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *TokenIssuer) accessTTL() time.Duration {
	if t.AccessTTL > 0 {
		return t.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (t *TokenIssuer) refreshTTL() time.Duration {
	if t.RefreshTTL > 0 {
		return t.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// IssueAccessToken signs a short lived token carrying the user id and the
// public profile fields.
func (t *TokenIssuer) IssueAccessToken(u domain.User) (string, time.Time, error) {
	c := jwtx.NewAccessClaims(u.ID.String(), t.Issuer, jwtx.Profile{
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	}, t.accessTTL(), t.now())

	token, err := t.Access.Sign(c)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, c.ExpiresAt.Time, nil
}

// IssueRefreshToken signs a long lived token carrying only the user id.
func (t *TokenIssuer) IssueRefreshToken(u domain.User) (string, time.Time, error) {
	c := jwtx.NewRefreshClaims(u.ID.String(), t.Issuer, t.refreshTTL(), t.now())

	token, err := t.Refresh.Sign(c)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, c.ExpiresAt.Time, nil
}

func (t *TokenIssuer) IssuePair(u domain.User) (domain.TokenPair, error) {
	access, accessExp, err := t.IssueAccessToken(u)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := t.IssueRefreshToken(u)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

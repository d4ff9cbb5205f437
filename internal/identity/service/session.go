package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	"github.com/aussiebroadwan/streamtab/internal/identity/metrics"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

// SessionService drives the login, refresh and logout state machine. A user
// has at most one live refresh token; the store keeps its fingerprint.
type SessionService struct {
	Store       store.Store
	Credentials *CredentialService
	Tokens      *TokenIssuer
	Events      events.Publisher
	Metrics     *metrics.Auth
}

// Login verifies the password, issues a pair and records the new refresh
// token, replacing any previous session.
func (s *SessionService) Login(ctx context.Context, identity, password string) (domain.Session, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Credentials.Authenticate(ctx, identity, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			l.Info("login failed", slog.String("identity", domain.NormalizeIdentity(identity)))
			s.Metrics.Login(metrics.OutcomeFailure)
		}
		return domain.Session{}, err
	}

	pair, err := s.Tokens.IssuePair(u)
	if err != nil {
		return domain.Session{}, domain.Internal(err)
	}

	fp := cryptox.FingerprintToken(pair.RefreshToken)
	exp := pair.RefreshExpiresAt
	if err := s.Store.Users().SetRefreshToken(ctx, u.ID, fp, &exp); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, domain.Internal(err)
	}
	u.RefreshTokenHash = fp
	u.RefreshExpiresAt = &exp

	l.Info("user logged in", slog.String("user_id", u.ID.String()))
	s.Metrics.Login(metrics.OutcomeSuccess)
	return domain.Session{User: u, Tokens: pair}, nil
}

var _ jwtx.Verifier = (*SessionService)(nil)

// Authorize verifies an access token without touching the store.
func (s *SessionService) Authorize(accessToken string) (idx.ID, error) {
	_, id, err := s.authorize(accessToken)
	return id, err
}

// Verify is Authorize for the request authenticator: it also hands back the
// claims, and rejects tokens whose subject is not a user id.
func (s *SessionService) Verify(accessToken string) (jwtx.Claims, error) {
	claims, _, err := s.authorize(accessToken)
	return claims, err
}

func (s *SessionService) authorize(accessToken string) (jwtx.Claims, idx.ID, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return jwtx.Claims{}, "", domain.ErrUnauthenticated
	}

	claims, err := s.Tokens.Access.Verifier.Verify(accessToken)
	if err != nil {
		return jwtx.Claims{}, "", domain.WithCause(domain.ErrUnauthenticated, err)
	}

	id, err := idx.Parse(claims.Subject)
	if err != nil {
		return jwtx.Claims{}, "", domain.WithCause(domain.ErrUnauthenticated, err)
	}
	return claims, id, nil
}

// Refresh rotates the presented refresh token. The token must equal the
// live one recorded for its subject, and the replacement is a single
// compare-and-swap on that value, so of two concurrent calls with the same
// token exactly one wins.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	l := slogx.FromContext(ctx)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}

	claims, err := s.Tokens.Refresh.Verifier.Verify(refreshToken)
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeFailure)
		return domain.Session{}, domain.WithCause(domain.ErrInvalidRefreshToken, err)
	}

	userID, err := idx.Parse(claims.Subject)
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeFailure)
		return domain.Session{}, domain.WithCause(domain.ErrInvalidRefreshToken, err)
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.Refresh(metrics.OutcomeFailure)
			return domain.Session{}, domain.WithCause(domain.ErrInvalidRefreshToken, err)
		}
		return domain.Session{}, domain.Internal(err)
	}

	presented := cryptox.FingerprintToken(refreshToken)
	if !cryptox.FingerprintEqual(presented, u.RefreshTokenHash) {
		l.Warn("refresh token reuse rejected", slog.String("user_id", u.ID.String()))
		s.Metrics.Refresh(metrics.OutcomeReused)
		return domain.Session{}, domain.ErrRefreshTokenReused
	}

	pair, err := s.Tokens.IssuePair(u)
	if err != nil {
		return domain.Session{}, domain.Internal(err)
	}

	next := cryptox.FingerprintToken(pair.RefreshToken)
	err = s.Store.Users().SwapRefreshToken(ctx, u.ID, presented, next, pair.RefreshExpiresAt)
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			l.Warn("concurrent refresh lost the rotation", slog.String("user_id", u.ID.String()))
			s.Metrics.Refresh(metrics.OutcomeReused)
			return domain.Session{}, domain.WithCause(domain.ErrRefreshTokenReused, err)
		}
		return domain.Session{}, domain.Internal(err)
	}

	exp := pair.RefreshExpiresAt
	u.RefreshTokenHash = next
	u.RefreshExpiresAt = &exp

	s.Metrics.Refresh(metrics.OutcomeSuccess)
	return domain.Session{User: u, Tokens: pair}, nil
}

// Logout clears the stored refresh token whichever device holds it.
// Logging out a user that no longer exists is not an error.
func (s *SessionService) Logout(ctx context.Context, userID idx.ID) error {
	err := s.Store.Users().SetRefreshToken(ctx, userID, "", nil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Internal(err)
	}

	slogx.FromContext(ctx).Info("user logged out", slog.String("user_id", userID.String()))
	s.Metrics.Logout()
	publish(ctx, s.Events, events.SessionRevoked, domain.User{ID: userID})
	return nil
}

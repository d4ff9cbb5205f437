package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestIssuePair(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	now := time.Now()
	env.tokens.Now = func() time.Time { return now }

	a, err := env.tokens.IssuePair(alice)
	require.NoError(t, err)
	b, err := env.tokens.IssuePair(alice)
	require.NoError(t, err)

	require.NotEqual(t, a.RefreshToken, b.RefreshToken)
	require.WithinDuration(t, now.Add(jwtx.DefaultAccessTokenTTL), a.AccessExpiresAt, time.Second)
	require.WithinDuration(t, now.Add(jwtx.DefaultRefreshTokenTTL), a.RefreshExpiresAt, time.Second)

	claims, err := env.tokens.Access.Verifier.Verify(a.AccessToken)
	require.NoError(t, err)
	require.Equal(t, alice.ID.String(), claims.Subject)
	require.Equal(t, "alice", claims.Username)

	// Issuing has no storage side effect.
	u, err := env.store.Users().GetUserByID(context.Background(), alice.ID)
	require.NoError(t, err)
	require.False(t, u.HasSession())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	sess := env.login(t, "alice")
	require.Equal(t, alice.ID, sess.User.ID)

	stored, err := env.store.Users().GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(sess.Tokens.RefreshToken), stored.RefreshTokenHash)
	require.NotNil(t, stored.RefreshExpiresAt)

	t.Run("a second login replaces the session", func(t *testing.T) {
		second := env.login(t, "alice")

		_, err := env.sessions.Refresh(ctx, sess.Tokens.RefreshToken)
		require.ErrorIs(t, err, domain.ErrRefreshTokenReused)

		_, err = env.sessions.Refresh(ctx, second.Tokens.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := env.sessions.Login(ctx, "alice", "nope")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
		require.Equal(t, domain.KindAuth, domain.KindOf(err))

		_, err = env.sessions.Login(ctx, "ghost", "nope")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	sess := env.login(t, "alice")

	id, err := env.sessions.Authorize(sess.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, alice.ID, id)

	_, err = env.sessions.Authorize("")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = env.sessions.Authorize("not.a.jwt")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Refresh tokens are signed with a different key and purpose.
	_, err = env.sessions.Authorize(sess.Tokens.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	t.Run("expired access tokens are rejected", func(t *testing.T) {
		env.tokens.Now = func() time.Time { return time.Now().Add(-time.Hour) }
		t.Cleanup(func() { env.tokens.Now = nil })

		old, _, err := env.tokens.IssueAccessToken(alice)
		require.NoError(t, err)

		_, err = env.sessions.Authorize(old)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	sess := env.login(t, "alice")

	rotated, err := env.sessions.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, sess.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	stored, err := env.store.Users().GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(rotated.Tokens.RefreshToken), stored.RefreshTokenHash)

	t.Run("replay of a superseded token is rejected", func(t *testing.T) {
		_, err := env.sessions.Refresh(ctx, sess.Tokens.RefreshToken)
		require.ErrorIs(t, err, domain.ErrRefreshTokenReused)
		require.Equal(t, domain.KindAuth, domain.KindOf(err))

		// The replay does not disturb the live session.
		_, err = env.sessions.Refresh(ctx, rotated.Tokens.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("missing and malformed tokens", func(t *testing.T) {
		_, err := env.sessions.Refresh(ctx, "")
		require.ErrorIs(t, err, domain.ErrUnauthenticated)

		_, err = env.sessions.Refresh(ctx, "garbage")
		require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("access tokens cannot refresh", func(t *testing.T) {
		_, err := env.sessions.Refresh(ctx, rotated.Tokens.AccessToken)
		require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	})
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "alice")
	sess := env.login(t, "alice")

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.sessions.Refresh(ctx, sess.Tokens.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Len(t, errs, n-1)
	for _, err := range errs {
		require.ErrorIs(t, err, domain.ErrRefreshTokenReused)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	sess := env.login(t, "alice")
	env.events.Events()

	require.NoError(t, env.sessions.Logout(ctx, alice.ID))

	_, err := env.sessions.Refresh(ctx, sess.Tokens.RefreshToken)
	require.ErrorIs(t, err, domain.ErrRefreshTokenReused)

	u, err := env.store.Users().GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, u.HasSession())

	got := env.events.Events()
	require.Len(t, got, 1)
	require.Equal(t, events.SessionRevoked, got[0].Type)

	// Idempotent, and tolerant of users that are gone.
	require.NoError(t, env.sessions.Logout(ctx, alice.ID))
	require.NoError(t, env.sessions.Logout(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV"))
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	"github.com/aussiebroadwan/streamtab/internal/identity/media"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u, err := env.creds.Register(ctx, domain.NewUser{
		Username: "  Alice ",
		Email:    "Alice@Example.com",
		FullName: "Alice Liddell",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, domain.DefaultAvatarURL, u.AvatarURL)
	require.Empty(t, u.CoverImageURL)
	require.NotEqual(t, "correct horse", u.PasswordHash)
	require.True(t, VerifyPassword(u, "correct horse"))

	got := env.events.Events()
	require.Len(t, got, 1)
	require.Equal(t, events.UserRegistered, got[0].Type)
	require.Equal(t, u.ID.String(), got[0].UserID)

	t.Run("duplicate username or email conflicts and creates nothing", func(t *testing.T) {
		_, err := env.creds.Register(ctx, domain.NewUser{
			Username: "ALICE", Email: "new@example.com", FullName: "Other", Password: "pw",
		})
		require.ErrorIs(t, err, domain.ErrUserExists)
		require.Equal(t, domain.KindConflict, domain.KindOf(err))

		_, err = env.creds.FindByIdentity(ctx, "new@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)

		_, err = env.creds.Register(ctx, domain.NewUser{
			Username: "alice2", Email: "alice@example.com", FullName: "Other", Password: "pw",
		})
		require.ErrorIs(t, err, domain.ErrUserExists)

		_, err = env.creds.FindByIdentity(ctx, "alice2")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("blank fields are rejected", func(t *testing.T) {
		for _, in := range []domain.NewUser{
			{Username: " ", Email: "b@example.com", FullName: "B", Password: "pw"},
			{Username: "b", Email: "", FullName: "B", Password: "pw"},
			{Username: "b", Email: "b@example.com", FullName: "\t", Password: "pw"},
			{Username: "b", Email: "b@example.com", FullName: "B", Password: "   "},
		} {
			_, err := env.creds.Register(ctx, in)
			require.ErrorIs(t, err, domain.ErrMissingFields)
		}
	})

	t.Run("explicit media references are kept", func(t *testing.T) {
		u, err := env.creds.Register(ctx, domain.NewUser{
			Username: "carol", Email: "carol@example.com", FullName: "Carol", Password: "pw",
			AvatarURL: "https://cdn.test/a.png", CoverImageURL: "https://cdn.test/c.png",
		})
		require.NoError(t, err)
		require.Equal(t, "https://cdn.test/a.png", u.AvatarURL)
		require.Equal(t, "https://cdn.test/c.png", u.CoverImageURL)
	})
}

func TestRegisterRejectsEmailShapedUsername(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	_, err := env.creds.Register(ctx, domain.NewUser{
		Username: "Alice@Example.com", Email: "mallory@example.com", FullName: "Mallory", Password: "mallory-password",
	})
	require.ErrorIs(t, err, domain.ErrInvalidUsername)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	u, err := env.creds.Authenticate(ctx, "alice@example.com", "alice-password")
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)

	_, err = env.creds.Authenticate(ctx, "alice@example.com", "mallory-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestFindByIdentityKeepsEmailAndUsernameApart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.register(t, "bob")

	// A row written around Register whose username is bob's email.
	squatter := domain.User{
		ID:           idx.New(),
		Username:     "bob@example.com",
		Email:        "mallory@example.com",
		FullName:     "Mallory",
		PasswordHash: bob.PasswordHash,
		AvatarURL:    domain.DefaultAvatarURL,
	}
	require.NoError(t, env.store.Users().CreateUser(ctx, squatter))

	got, err := env.creds.FindByIdentity(ctx, "BOB@example.com")
	require.NoError(t, err)
	require.Equal(t, bob.ID, got.ID)

	got, err = env.creds.FindByIdentity(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, bob.ID, got.ID)

	_, err = env.creds.FindByIdentity(ctx, "mallory")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRegisterUploads(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	avatar, cover := stage(t, "avatar.png"), stage(t, "cover.jpg")
	alice, err := env.creds.Register(ctx, domain.NewUser{
		Username: "alice", Email: "alice@example.com", FullName: "Alice", Password: "pw",
		AvatarPath: avatar, CoverImagePath: cover,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(alice.AvatarURL, "http://cdn.test/media/"))
	require.True(t, strings.HasSuffix(alice.CoverImageURL, ".jpg"))
	require.Equal(t, 2, env.storedObjects(t))
	for _, p := range []string{avatar, cover} {
		_, err := os.Stat(p)
		require.ErrorIs(t, err, os.ErrNotExist)
	}

	t.Run("a taken username uploads nothing", func(t *testing.T) {
		avatar, cover := stage(t, "avatar.png"), stage(t, "cover.jpg")
		_, err := env.creds.Register(ctx, domain.NewUser{
			Username: "alice", Email: "other@example.com", FullName: "Other", Password: "pw",
			AvatarPath: avatar, CoverImagePath: cover,
		})
		require.ErrorIs(t, err, domain.ErrUserExists)
		require.Equal(t, 2, env.storedObjects(t))
		for _, p := range []string{avatar, cover} {
			_, err := os.Stat(p)
			require.ErrorIs(t, err, os.ErrNotExist)
		}
	})

	t.Run("a failed cover upload discards the avatar", func(t *testing.T) {
		env.creds.Media = coverFails{env.creds.Media}
		t.Cleanup(func() { env.creds.Media = env.accounts.Media })

		_, err := env.creds.Register(ctx, domain.NewUser{
			Username: "bob", Email: "bob@example.com", FullName: "Bob", Password: "pw",
			AvatarPath: stage(t, "avatar.png"), CoverImagePath: stage(t, "cover.jpg"),
		})
		require.Equal(t, domain.KindValidation, domain.KindOf(err))
		require.Equal(t, 2, env.storedObjects(t))

		_, err = env.creds.FindByIdentity(ctx, "bob")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("uploads without a resolver fail cleanly", func(t *testing.T) {
		env.creds.Media = nil
		t.Cleanup(func() { env.creds.Media = env.accounts.Media })

		staged := stage(t, "avatar.png")
		_, err := env.creds.Register(ctx, domain.NewUser{
			Username: "carol", Email: "carol@example.com", FullName: "Carol", Password: "pw",
			AvatarPath: staged,
		})
		require.Equal(t, domain.KindInternal, domain.KindOf(err))
		_, err = os.Stat(staged)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

// coverFails refuses any upload whose staged name mentions a cover.
type coverFails struct {
	media.Resolver
}

func (r coverFails) Resolve(ctx context.Context, localPath string) (string, error) {
	if strings.Contains(filepath.Base(localPath), "cover") {
		return "", os.ErrPermission
	}
	return r.Resolver.Resolve(ctx, localPath)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	u, err := env.creds.Authenticate(ctx, "ALICE@example.com", "alice-password")
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)

	_, err = env.creds.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.creds.Authenticate(ctx, "nobody", "alice-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.creds.Authenticate(ctx, "", "pw")
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	require.NoError(t, env.creds.UpdatePassword(ctx, alice.ID, "new-password"))

	_, err := env.creds.Authenticate(ctx, "alice", "alice-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = env.creds.Authenticate(ctx, "alice", "new-password")
	require.NoError(t, err)

	require.ErrorIs(t, env.creds.UpdatePassword(ctx, alice.ID, " "), domain.ErrMissingFields)
}

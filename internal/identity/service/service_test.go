package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/events"
	"github.com/aussiebroadwan/streamtab/internal/identity/media"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://identity.test"

type testEnv struct {
	store    store.Store
	events   *events.Recorder
	tokens   *TokenIssuer
	creds    *CredentialService
	sessions *SessionService
	accounts *AccountService
	views    *ViewBuilder
	history  *HistoryService
	mediaDir string
}

func newKeyManager(t *testing.T, use string) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		Use:       use,
		NumKeys:   1,
	})
	require.NoError(t, err)
	return km
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	rec := events.NewRecorder(64)
	tokens := &TokenIssuer{
		Access:  newKeyManager(t, jwtx.UseAccess),
		Refresh: newKeyManager(t, jwtx.UseRefresh),
		Issuer:  testIssuer,
	}
	mediaDir := t.TempDir()
	resolver := &media.Disk{Dir: mediaDir, BaseURL: "http://cdn.test/media"}
	creds := &CredentialService{Store: st, Media: resolver, Events: rec}

	return &testEnv{
		store:    st,
		events:   rec,
		tokens:   tokens,
		creds:    creds,
		sessions: &SessionService{Store: st, Credentials: creds, Tokens: tokens, Events: rec},
		accounts: &AccountService{Store: st, Media: resolver, Events: rec},
		views:    &ViewBuilder{Store: st},
		history:  &HistoryService{Store: st},
		mediaDir: mediaDir,
	}
}

func (e *testEnv) register(t *testing.T, username string) domain.User {
	t.Helper()
	u, err := e.creds.Register(context.Background(), domain.NewUser{
		Username: username,
		Email:    username + "@example.com",
		FullName: "User " + username,
		Password: username + "-password",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, username string) domain.Session {
	t.Helper()
	sess, err := e.sessions.Login(context.Background(), username, username+"-password")
	require.NoError(t, err)
	return sess
}

func (e *testEnv) addVideo(t *testing.T, owner idx.ID, title string) domain.Video {
	t.Helper()
	now := time.Now().UTC()
	v := domain.Video{
		ID:          idx.New(),
		OwnerID:     owner,
		Title:       title,
		VideoURL:    "https://cdn.test/" + title + ".mp4",
		Duration:    42,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.store.Videos().CreateVideo(context.Background(), v))
	return v
}

// stage writes a fake upload and returns its path.
func stage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o600))
	return p
}

// storedObjects counts the files the disk resolver holds.
func (e *testEnv) storedObjects(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(e.mediaDir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

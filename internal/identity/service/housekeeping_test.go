package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.login(t, "bob")

	past := time.Now().Add(-time.Minute)
	require.NoError(t, env.store.Users().SetRefreshToken(ctx, alice.ID, "expired", &past))

	uploads := t.TempDir()
	stale := filepath.Join(uploads, "stale.png")
	fresh := filepath.Join(uploads, "fresh.png")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	hk := NewHousekeepingService(env.store, slogx.Discard(), time.Hour, uploads)
	hk.Cleanup(ctx)

	u, err := env.store.Users().GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, u.HasSession())

	u, err = env.store.Users().GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	require.True(t, u.HasSession())

	_, err = os.Stat(stale)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestHousekeepingStartStop(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, slogx.Discard(), 0, "")
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
}

func TestHousekeepingStartStopAreIdempotent(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, slogx.Discard(), time.Hour, "")
	hk.Start()
	hk.Start()
	hk.Stop()
	hk.Stop()

	// A stopped worker can be started again.
	hk.Start()
	hk.Stop()

	t.Run("concurrent callers", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(2)
			go func() { defer wg.Done(); hk.Start() }()
			go func() { defer wg.Done(); hk.Stop() }()
		}
		wg.Wait()
		hk.Stop()

		hk.mu.Lock()
		defer hk.mu.Unlock()
		require.Nil(t, hk.stopCh)
		require.Nil(t, hk.doneCh)
	})
}

func TestHousekeepingStopWithoutStart(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, slogx.Discard(), time.Hour, "")
	hk.Stop()
	hk.Stop()
}

package identity_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/streamtab/pkg/identitysdk"
)

func TestChannelProfile(t *testing.T) {
	srv := setupIdentityServer(t)
	alice := srv.registerUser(t, "alice")
	bob := srv.registerUser(t, "bob")
	carol := srv.registerUser(t, "carol")

	srv.subscribe(t, bob, alice)
	srv.subscribe(t, carol, alice)
	srv.subscribe(t, alice, bob)

	t.Run("subscriber", func(t *testing.T) {
		ch, err := srv.login(t, "bob").GetChannel(t.Context(), "alice")
		require.NoError(t, err)
		require.Equal(t, "alice", ch.Username)
		require.Equal(t, alice.Email, ch.Email)
		require.EqualValues(t, 2, ch.SubscribersCount)
		require.EqualValues(t, 1, ch.ChannelsSubscribedToCount)
		require.True(t, ch.IsSubscribed)
	})

	t.Run("owner", func(t *testing.T) {
		ch, err := srv.login(t, "alice").GetChannel(t.Context(), "ALICE")
		require.NoError(t, err)
		require.False(t, ch.IsSubscribed)
	})

	t.Run("anonymous", func(t *testing.T) {
		ch, err := srv.client.GetChannel(t.Context(), "alice")
		require.NoError(t, err)
		require.EqualValues(t, 2, ch.SubscribersCount)
		require.False(t, ch.IsSubscribed)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := srv.client.GetChannel(t.Context(), "nobody")
		require.True(t, identitysdk.IsNotFound(err), "unknown channel should 404, got %v", err)
	})
}

func TestWatchHistory(t *testing.T) {
	srv := setupIdentityServer(t)
	alice := srv.registerUser(t, "alice")
	srv.registerUser(t, "bob")
	session := srv.login(t, "bob")

	history, err := session.WatchHistory(t.Context())
	require.NoError(t, err)
	require.Empty(t, history)

	first := srv.publishVideo(t, alice, "first")
	second := srv.publishVideo(t, alice, "second")

	require.NoError(t, session.RecordView(t.Context(), first.String()))
	require.NoError(t, session.RecordView(t.Context(), second.String()))

	history, err = session.WatchHistory(t.Context())
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.String(), history[0].ID)
	require.Equal(t, second.String(), history[1].ID)

	for _, entry := range history {
		require.NotNil(t, entry.Owner)
		require.Equal(t, "alice", entry.Owner.Username)
		require.True(t, entry.IsPublished)
	}

	err = session.RecordView(t.Context(), "not-a-video")
	assertAPIError(t, err, http.StatusBadRequest, "Invalid video id")
}

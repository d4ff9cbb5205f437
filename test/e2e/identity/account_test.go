package identity_test

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/streamtab/pkg/identitysdk"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nnot-really-an-image")

func TestUpdateAccount(t *testing.T) {
	srv := setupIdentityServer(t)
	srv.registerUser(t, "alice")
	srv.registerUser(t, "bob")
	session := srv.login(t, "alice")

	user, err := session.UpdateAccount(t.Context(), identitysdk.UpdateAccountRequest{
		FullName: "Alice Liddell",
		Email:    "Alice.Liddell@Example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "Alice Liddell", user.FullName)
	require.Equal(t, "alice.liddell@example.com", user.Email)

	// The new email is a login identity straight away.
	_, err = srv.client.Login(t.Context(), "alice.liddell@example.com", defaultPassword)
	require.NoError(t, err)

	_, err = session.UpdateAccount(t.Context(), identitysdk.UpdateAccountRequest{
		FullName: "Alice",
		Email:    "bob@example.com",
	})
	require.True(t, identitysdk.IsConflict(err), "taken email should conflict, got %v", err)

	_, err = session.UpdateAccount(t.Context(), identitysdk.UpdateAccountRequest{
		FullName: "Alice",
		Email:    "not-an-email",
	})
	assertAPIError(t, err, http.StatusBadRequest, "")
}

// TestUpdateImages verifies uploads are stored and served back.
func TestUpdateImages(t *testing.T) {
	srv := setupIdentityServer(t)
	srv.registerUser(t, "alice")
	session := srv.login(t, "alice")

	user, err := session.UpdateAvatar(t.Context(), "me.png", pngBytes)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(user.Avatar, srv.baseURL+"/media/"), "avatar %q", user.Avatar)
	require.True(t, strings.HasSuffix(user.Avatar, ".png"))
	requireServed(t, user.Avatar, pngBytes)

	user, err = session.UpdateCoverImage(t.Context(), "cover.png", pngBytes)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(user.CoverImage, srv.baseURL+"/media/"), "cover %q", user.CoverImage)
	requireServed(t, user.CoverImage, pngBytes)

	me, err := session.CurrentUser(t.Context())
	require.NoError(t, err)
	require.Equal(t, user.Avatar, me.Avatar)
	require.Equal(t, user.CoverImage, me.CoverImage)
}

func TestChangePassword(t *testing.T) {
	srv := setupIdentityServer(t)
	srv.registerUser(t, "alice")
	session := srv.login(t, "alice")

	err := session.ChangePassword(t.Context(), "wrong-password", "NewSecret456!")
	assertAPIError(t, err, http.StatusUnauthorized, "Invalid old password")

	require.NoError(t, session.ChangePassword(t.Context(), defaultPassword, "NewSecret456!"))

	// The stored session is gone.
	err = session.Refresh(t.Context())
	require.True(t, identitysdk.IsUnauthorized(err), "refresh after password change should fail, got %v", err)

	_, err = srv.client.Login(t.Context(), "alice", defaultPassword)
	assertAPIError(t, err, http.StatusUnauthorized, "Invalid user credentials")

	_, err = srv.client.Login(t.Context(), "alice", "NewSecret456!")
	require.NoError(t, err)
}

func requireServed(t *testing.T, url string, want []byte) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, got), "served bytes differ")
}

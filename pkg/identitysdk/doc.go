/*
Package identitysdk is a Go client for the StreamTab identity service and the
home of its wire types.

# SDKClient vs Session

SDKClient covers the public endpoints and starts sessions:

	client := identitysdk.NewSDKClient("https://identity.example.com")

	user, err := client.Register(ctx, identitysdk.RegisterRequest{...})
	session, err := client.Login(ctx, "alice", "correct horse")

	channel, err := client.GetChannel(ctx, "bob")

A Session carries the access and refresh tokens of one login. It refreshes the
access token shortly before it expires, and retries a request once after a 401
by rotating the refresh token:

	me, err := session.CurrentUser(ctx)
	history, err := session.WatchHistory(ctx)
	err = session.Logout(ctx)

Only one session per user is live at a time. Logging in elsewhere, logging out
or changing the password invalidates the refresh token held by every other
Session, which then fails with an *APIError of status 401.

# Errors

Every non-2xx response is returned as *APIError carrying the status code and
the envelope message.
*/
package identitysdk

package identity_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/streamtab/internal/identity/app"
	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/identitysdk"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

/*
 * Shared setup for the identity end-to-end tests. Each test boots the whole
 * application from environment variables, the same way the binary does, and
 * talks to it only through identitysdk.
 */

const defaultPassword = "Secret123!"

type testServer struct {
	baseURL string
	client  *identitysdk.SDKClient
	app     *app.Application
}

// setupIdentityServer starts a fresh service with relaxed rate limits.
// Extra environment variables are applied last.
func setupIdentityServer(t *testing.T, env ...string) *testServer {
	t.Helper()
	return startServer(t, append([]string{
		"RATELIMIT_STRICT_REQUESTS", "1000",
		"RATELIMIT_STRICT_BURST", "1000",
		"RATELIMIT_MODERATE_REQUESTS", "1000",
		"RATELIMIT_MODERATE_BURST", "1000",
	}, env...)...)
}

// setupIdentityServerWithDefaultRateLimits keeps the production limits.
// Only the rate limit tests should need it.
func setupIdentityServerWithDefaultRateLimits(t *testing.T) *testServer {
	t.Helper()
	return startServer(t)
}

func startServer(t *testing.T, env ...string) *testServer {
	t.Helper()
	require.Zero(t, len(env)%2, "env must be key value pairs")

	dir := t.TempDir()
	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()

	defaults := []string{
		"CONFIG_PATH", "",
		"ENV", "test",
		"LOG_LEVEL", "error",
		"DATABASE_DRIVER", "sqlite",
		"DATABASE_DSN", filepath.Join(dir, "identity.db"),
		"PEPPER_FILE", filepath.Join(dir, "pepper"),
		"UPLOAD_DIR", filepath.Join(dir, "uploads"),
		"MEDIA_BACKEND", "disk",
		"MEDIA_DISK_DIR", filepath.Join(dir, "media"),
		"MEDIA_DISK_PATH", "/media",
		"MEDIA_PUBLIC_BASE_URL", baseURL + "/media",
		"REDIS_ADDR", "",
		"AMQP_URL", "",
	}
	env = append(defaults, env...)
	for i := 0; i < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}

	cfg, err := app.LoadConfig()
	require.NoError(t, err, "configuration should load from the environment")

	application, err := app.New(context.Background(), cfg)
	require.NoError(t, err, "application should start")

	srv.Config.Handler = application.Handler()
	srv.Start()

	t.Cleanup(func() {
		srv.Close()
		if err := application.Shutdown(); err != nil {
			t.Logf("failed to shut down application: %v", err)
		}
	})

	return &testServer{
		baseURL: baseURL,
		client:  identitysdk.NewSDKClient(baseURL),
		app:     application,
	}
}

// registerUser creates username with defaultPassword.
func (s *testServer) registerUser(t *testing.T, username string) *identitysdk.UserResponse {
	t.Helper()

	user, err := s.client.Register(t.Context(), identitysdk.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		FullName: "Test " + username,
		Password: defaultPassword,
	})
	require.NoError(t, err, "register %s should succeed", username)
	require.NotEmpty(t, user.ID)
	return user
}

func (s *testServer) login(t *testing.T, username string) *identitysdk.Session {
	t.Helper()

	session, err := s.client.Login(t.Context(), username, defaultPassword)
	require.NoError(t, err, "login %s should succeed", username)
	require.NotNil(t, session)
	return session
}

// subscribe writes a subscription edge directly; the identity API only
// reads them.
func (s *testServer) subscribe(t *testing.T, subscriber, channel *identitysdk.UserResponse) {
	t.Helper()

	err := s.app.Store().Subscriptions().CreateSubscription(t.Context(), domain.Subscription{
		ID:           idx.New(),
		SubscriberID: idx.MustParse(subscriber.ID),
		ChannelID:    idx.MustParse(channel.ID),
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
}

// publishVideo seeds a catalogue row owned by owner.
func (s *testServer) publishVideo(t *testing.T, owner *identitysdk.UserResponse, title string) idx.ID {
	t.Helper()

	now := time.Now().UTC()
	v := domain.Video{
		ID:           idx.New(),
		OwnerID:      idx.MustParse(owner.ID),
		Title:        title,
		Description:  fmt.Sprintf("%s by %s", title, owner.Username),
		VideoURL:     "https://cdn.example/videos/" + title + ".mp4",
		ThumbnailURL: "https://cdn.example/thumbs/" + title + ".png",
		Duration:     61.5,
		IsPublished:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.app.Store().Videos().CreateVideo(t.Context(), v))
	return v.ID
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *identitysdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}

// assertAPIError checks the status and message of a failed call.
func assertAPIError(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)

	var apiErr *identitysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status, message %q", apiErr.Message)
	if message != "" {
		require.Contains(t, apiErr.Message, message)
	}
}

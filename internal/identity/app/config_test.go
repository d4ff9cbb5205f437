package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
)

func validConfig() Config {
	return Config{
		Env:      "test",
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "identity.db"},
		Tokens: TokenConfig{
			Issuer:     "streamtab-identity",
			Algorithm:  jwtx.AlgorithmEdDSA,
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 240 * time.Hour,
		},
		Media:     MediaConfig{Backend: "disk", DiskDir: "media"},
		RateLimit: RateLimitConfig{Window: time.Minute},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, jwtx.AlgorithmEdDSA, cfg.Tokens.Algorithm)
	require.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	require.Equal(t, 240*time.Hour, cfg.Tokens.RefreshTTL)
	require.Equal(t, "disk", cfg.Media.Backend)
	require.False(t, cfg.WatchHistory.Dedup)
	require.Zero(t, cfg.WatchHistory.Max)
	require.Empty(t, cfg.Redis.Addr)
	require.Empty(t, cfg.AMQP.URL)
	require.False(t, cfg.Hardened())
	require.Equal(t, httpx.StrictLimit, cfg.RateLimit.limits().Strict)
	require.Equal(t, httpx.LenientLimit, cfg.RateLimit.limits().Lenient)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV", "PROD")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGIN", "https://a.example,https://b.example")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("WATCH_HISTORY_DEDUP", "true")
	t.Setenv("WATCH_HISTORY_MAX", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.True(t, cfg.Hardened())
	require.Equal(t, 9090, cfg.HTTP.Port)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	require.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)
	require.True(t, cfg.WatchHistory.Dedup)
	require.Equal(t, 50, cfg.WatchHistory.Max)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: staging
http:
  port: 7070
database:
  driver: postgres
  dsn: postgres://identity@localhost/identity
tokens:
  issuer: https://id.example
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "7171")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, 7171, cfg.HTTP.Port, "environment overrides the file")
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "https://id.example", cfg.Tokens.Issuer)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DATABASE_DRIVER"},
		{"hs256 without secrets", func(c *Config) { c.Tokens.Algorithm = jwtx.AlgorithmHS256 }, "ACCESS_TOKEN_SECRET"},
		{"hs256 equal secrets", func(c *Config) {
			c.Tokens.Algorithm = jwtx.AlgorithmHS256
			c.Tokens.AccessSecret = "same"
			c.Tokens.RefreshSecret = "same"
		}, "must differ"},
		{"hs256 ok", func(c *Config) {
			c.Tokens.Algorithm = jwtx.AlgorithmHS256
			c.Tokens.AccessSecret = "access-secret"
			c.Tokens.RefreshSecret = "refresh-secret"
		}, ""},
		{"unknown algorithm", func(c *Config) { c.Tokens.Algorithm = "RS256" }, "TOKEN_ALGORITHM"},
		{"access outlives refresh", func(c *Config) { c.Tokens.AccessTTL = 300 * time.Hour }, "shorter"},
		{"s3 without bucket", func(c *Config) { c.Media.Backend = "s3" }, "S3_BUCKET"},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }, "RATELIMIT_WINDOW"},
		{"negative history cap", func(c *Config) { c.WatchHistory.Max = -1 }, "WATCH_HISTORY_MAX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNew_ServesHealth(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.LogLevel = "error"
	cfg.Database.DSN = filepath.Join(dir, "identity.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.Media.DiskDir = filepath.Join(dir, "media")
	cfg.Media.DiskPath = "/media"
	cfg.HTTP.UploadDir = filepath.Join(dir, "uploads")
	cfg.HTTP.MetricsEnabled = true

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Shutdown()) })

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/livez", "/readyz", "/.well-known/jwks.json", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	_, err = os.Stat(cfg.PepperFile)
	require.NoError(t, err)
	_, err = os.Stat(cfg.HTTP.UploadDir)
	require.NoError(t, err)
}

func TestNew_RejectsUnreachableRedis(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.LogLevel = "error"
	cfg.Database.DSN = filepath.Join(dir, "identity.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.Media.DiskDir = filepath.Join(dir, "media")
	cfg.HTTP.UploadDir = filepath.Join(dir, "uploads")
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := New(ctx, cfg)
	require.ErrorContains(t, err, "redis")
}

package httpx_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.1"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "203.0.113.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestBodyFieldKeyExtractor(t *testing.T) {
	ex := httpx.BodyFieldKeyExtractor("username", "email")

	t.Run("json body is restored", func(t *testing.T) {
		body := `{"email":"Alice@Example.com","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		require.Equal(t, "alice@example.com", ex(req))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	t.Run("form body", func(t *testing.T) {
		form := url.Values{"username": {"Bob"}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		require.Equal(t, "bob", ex(req))
	})

	t.Run("no field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
		req.Header.Set("Content-Type", "application/json")
		require.Equal(t, "", ex(req))
	})
}

func TestRateLimit(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	h := httpx.Chain(okHandler(), httpx.RateLimitByIP(cfg))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for range 3 {
		require.Equal(t, http.StatusOK, call("10.0.0.1:1").Code)
	}

	rec := call("10.0.0.1:1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	env := decodeEnvelope(t, rec)
	require.Equal(t, 429, env.StatusCode)
	require.False(t, env.Success)

	// Separate bucket per address
	require.Equal(t, http.StatusOK, call("10.0.0.2:1").Code)
}

func TestRateLimitByIPAndField(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.Chain(okHandler(), httpx.RateLimitByIPAndField(cfg, "username"))

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"`+user+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.1:1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, call("alice"))
	require.Equal(t, http.StatusTooManyRequests, call("ALICE"))
	require.Equal(t, http.StatusOK, call("bob"))
}

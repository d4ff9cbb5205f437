package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket refilled at RequestsPerWindow/Window.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
}

// Default profiles. The app config may override them.
var (
	// StrictLimit guards credential endpoints against guessing.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit covers authenticated writes.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 30, Window: time.Minute, Burst: 30}

	// LenientLimit covers reads.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 300, Window: time.Minute, Burst: 300}
)

func (c RateLimitConfig) limit() rate.Limit {
	if c.Window <= 0 || c.RequestsPerWindow <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// KeyExtractor groups requests into buckets. An empty key skips limiting.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor uses the first X-Forwarded-For hop, then X-Real-IP, then
// the socket address.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserIDKeyExtractor uses the authenticated subject.
func UserIDKeyExtractor(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, ex := range extractors {
			if key := ex(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// BodyFieldKeyExtractor reads a top-level string field from a JSON body,
// or a form value for form posts, and restores the body for the handler.
// Values are lower-cased so "Alice" and "alice" share a bucket.
func BodyFieldKeyExtractor(fields ...string) KeyExtractor {
	const peekLimit = 64 << 10

	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/json") {
			if strings.HasPrefix(ct, "application/x-www-form-urlencoded") && r.ParseForm() == nil {
				for _, f := range fields {
					if v := r.PostFormValue(f); v != "" {
						return strings.ToLower(v)
					}
				}
			}
			return ""
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var m map[string]any
		if json.Unmarshal(body, &m) != nil {
			return ""
		}
		for _, f := range fields {
			if v, ok := m[f].(string); ok && v != "" {
				return strings.ToLower(strings.TrimSpace(v))
			}
		}
		return ""
	}
}

type rateLimiter struct {
	cfg      RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter

	mu          sync.Mutex
	lastCleanup time.Time
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	if l, ok := rl.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.cfg.limit(), rl.cfg.Burst))
	rl.sweep()
	return l.(*rate.Limiter)
}

// sweep drops buckets that have refilled completely, they carry no state.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.cfg.Burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit limits requests per key and answers 429 with Retry-After.
func RateLimit(cfg RateLimitConfig, key KeyExtractor) Middleware {
	rl := &rateLimiter{cfg: cfg, lastCleanup: time.Now()}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := rl.get(k)
			if l.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Reserve()
			retryAfter := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)
			WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, IPKeyExtractor)
}

// RateLimitByUser limits by subject and address. Must run after Authn.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, CompositeKeyExtractor(":", UserIDKeyExtractor, IPKeyExtractor))
}

// RateLimitByIPAndField limits by address plus a request body field, so
// one address cannot hammer a single account and cannot spray many.
func RateLimitByIPAndField(cfg RateLimitConfig, fields ...string) Middleware {
	return RateLimit(cfg, CompositeKeyExtractor(":", IPKeyExtractor, BodyFieldKeyExtractor(fields...)))
}

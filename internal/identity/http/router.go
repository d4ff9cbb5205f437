package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/streamtab/internal/identity/service"
	"github.com/aussiebroadwan/streamtab/internal/identity/store"
	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"

	_ "github.com/aussiebroadwan/streamtab/api/identity" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

const usersPrefix = "/api/v1/users"

// RateLimits are the three profiles applied to routes. Zero values fall
// back to the httpx defaults.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

// Options are the transport settings that do not belong to a service.
type Options struct {
	// Env "prod" hardens cookies and hides error causes.
	Env string

	// UploadDir receives multipart files before they reach the resolver.
	UploadDir string

	// MaxBodyBytes caps every request body, uploads included.
	MaxBodyBytes int64

	CORSOrigins []string

	// MediaDir and MediaPath serve disk-backed uploads. Both empty when
	// media lives in object storage.
	MediaDir  string
	MediaPath string

	// Registry exposes /metrics and request metrics when set.
	Registry *prometheus.Registry

	Limits RateLimits
}

func (o Options) hardened() bool { return o.Env == "prod" }

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	access       *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	opts         Options

	store       store.Store
	Credentials *service.CredentialService
	Sessions    *service.SessionService
	Accounts    *service.AccountService
	Views       *service.ViewBuilder
	History     *service.HistoryService
}

func NewRouter(
	access *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	opts Options,
) *Router {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	opts.Limits = opts.Limits.withDefaults()

	r := &Router{
		Mux:          http.NewServeMux(),
		access:       access,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		opts:         opts,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}
	if len(opts.CORSOrigins) > 0 {
		r.middlewares = append(r.middlewares, httpx.CORS(opts.CORSOrigins...))
	}
	r.middlewares = append(r.middlewares, httpx.MaxBodyBytes(opts.MaxBodyBytes))
	if opts.Registry != nil {
		// innermost, so the matched pattern is set when it records
		r.middlewares = append(r.middlewares, httpx.NewMetrics(opts.Registry, "identity").Middleware())
	}

	return r
}

func (l RateLimits) withDefaults() RateLimits {
	if l.Strict == (httpx.RateLimitConfig{}) {
		l.Strict = httpx.StrictLimit
	}
	if l.Moderate == (httpx.RateLimitConfig{}) {
		l.Moderate = httpx.ModerateLimit
	}
	if l.Lenient == (httpx.RateLimitConfig{}) {
		l.Lenient = httpx.LenientLimit
	}
	return l
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerAccount()
	r.registerChannels()
	r.registerSystem()
	r.registerMedia()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			StreamTab Identity API
//	@version		0.1.0
//	@description	Accounts, sessions and channel views for the StreamTab media platform.
//	@description
//	@description				Every response is wrapped in {statusCode, data, message, success}.
//	@description				Access tokens are accepted from the Authorization header or the accessToken cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/streamtab
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn checks access tokens through the session service, so a token is
// only accepted when its subject is a well formed user id.
func (r *Router) authn() httpx.Middleware {
	return httpx.Authn(r.Sessions, AccessTokenCookie)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{
		Credentials: r.Credentials,
		Sessions:    r.Sessions,
		router:      r,
	}

	// Public signup - strict by IP
	r.Mux.Handle("POST "+usersPrefix+"/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.opts.Limits.Strict),
		),
	)

	// Credential check - strict by IP and the account being tried
	r.Mux.Handle("POST "+usersPrefix+"/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndField(r.opts.Limits.Strict, "username", "email"),
		),
	)

	r.Mux.Handle("POST "+usersPrefix+"/refresh-token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.opts.Limits.Moderate),
		),
	)

	r.Mux.Handle("POST "+usersPrefix+"/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.authn(),
			httpx.RateLimitByUser(r.opts.Limits.Moderate),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		Accounts: r.Accounts,
		router:   r,
	}

	secured := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			r.authn(),
			httpx.RateLimitByUser(limit),
		)
	}

	// Guessing the old password is a credential attack too
	r.Mux.Handle("POST "+usersPrefix+"/change-password", secured(h.HandleChangePassword, r.opts.Limits.Strict))

	r.Mux.Handle("GET "+usersPrefix+"/current-user", secured(h.HandleCurrentUser, r.opts.Limits.Lenient))
	r.Mux.Handle("PUT "+usersPrefix+"/update-account", secured(h.HandleUpdateAccount, r.opts.Limits.Moderate))
	r.Mux.Handle("PUT "+usersPrefix+"/update-avatar", secured(h.HandleUpdateAvatar, r.opts.Limits.Moderate))
	r.Mux.Handle("PUT "+usersPrefix+"/update-cover-image", secured(h.HandleUpdateCoverImage, r.opts.Limits.Moderate))
}

func (r *Router) registerChannels() {
	h := &ChannelHandler{
		Views:   r.Views,
		History: r.History,
		router:  r,
	}

	// Anonymous callers get a profile without the subscription flag
	channel := httpx.Chain(http.HandlerFunc(h.HandleChannel),
		httpx.OptionalAuthn(r.Sessions, AccessTokenCookie),
		httpx.RateLimitByIP(r.opts.Limits.Lenient),
	)
	r.Mux.Handle("GET "+usersPrefix+"/c/{username}", channel)
	r.Mux.Handle("GET "+usersPrefix+"/c/{$}", channel)
	r.Mux.Handle("GET "+usersPrefix+"/user-channel/{username}", channel)

	r.Mux.Handle("GET "+usersPrefix+"/watch-history",
		httpx.Chain(http.HandlerFunc(h.HandleWatchHistory),
			r.authn(),
			httpx.RateLimitByUser(r.opts.Limits.Lenient),
		),
	)
	r.Mux.Handle("POST "+usersPrefix+"/watch-history/{videoId}",
		httpx.Chain(http.HandlerFunc(h.HandleRecordView),
			r.authn(),
			httpx.RateLimitByUser(r.opts.Limits.Lenient),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.opts.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.access),
			httpx.RateLimitByIP(r.opts.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.access),
			httpx.RateLimitByIP(r.opts.Limits.Lenient),
		),
	)

	if r.opts.Registry != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.opts.Registry, promhttp.HandlerOpts{}))
	}
}

// registerMedia serves the disk media backend. Object storage serves
// itself.
func (r *Router) registerMedia() {
	if r.opts.MediaDir == "" || r.opts.MediaPath == "" {
		return
	}
	prefix := "/" + trimSlashes(r.opts.MediaPath) + "/"
	r.Mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(noListing{http.Dir(r.opts.MediaDir)})))
}

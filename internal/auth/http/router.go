package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/auth/domain"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"

	_ "github.com/aussiebroadwan/tollgate/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         KeySource
	db           Pinger
	redis        Pinger
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Cookies       CookieConfig
	Limits        RateLimits
	Accounts      *service.AccountService
	Sessions      *service.SessionService
	ServiceTokens *service.ServiceTokens
}

// RateLimits are the per-route-class request limits.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

func NewRouter(
	keys KeySource,
	db, redis Pinger,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		db:           db,
		redis:        redis,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		Limits: RateLimits{
			Strict:   httpx.StrictLimit,
			Moderate: httpx.ModerateLimit,
			Public:   httpx.PublicLimit,
		},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerInternal()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			tollgate Authentication Service API
//	@version		0.1.0
//	@description	Issues short-lived access tokens and single-use refresh tokens, and revokes them.
//	@description
//	@description				Tokens are JWS signed with the key named by their kid; verify them with the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tollgate
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
//	@description				JWT access or service token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Credential endpoints: strict per-IP limits on top of the attempt gates.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{Accounts: r.Accounts, Cookies: r.Cookies},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{Accounts: r.Accounts, Cookies: r.Cookies},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{Sessions: r.Sessions, Cookies: r.Cookies},
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	// Logout answers 200 for any token, so it authenticates on its own.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{Sessions: r.Sessions, Cookies: r.Cookies},
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(&LogoutAllHandler{Sessions: r.Sessions, Cookies: r.Cookies},
			httpx.AuthnMiddleware(r.Sessions),
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(MeHandler(),
			httpx.AuthnMiddleware(r.Sessions),
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerInternal() {
	internal := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			httpx.AuthnMiddleware(r.ServiceTokens),
			httpx.RequireAnyRole(domain.RoleInternal),
		)
	}

	r.Mux.Handle("POST /v1/internal/sessions/revoke", internal(&RevokeSessionsHandler{Sessions: r.Sessions}))
	r.Mux.Handle("POST /v1/internal/introspect", internal(&IntrospectHandler{Sessions: r.Sessions}))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.db, r.redis, r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}

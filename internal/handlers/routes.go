package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.HealthChecks}
	users := UserHandler{
		Accounts:     deps.Accounts,
		Uploads:      deps.Uploads,
		Cookies:      deps.Cookies,
		MaxBodyBytes: deps.MaxBodyBytes,
	}
	requireAuth := middleware.Authenticate(deps.Tokens)

	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/api/v1/users/register", middleware.RateLimit(deps.Limiter, "register", deps.TrustProxy)(http.HandlerFunc(users.Register)))
	mux.Handle("/api/v1/users/login", middleware.RateLimit(deps.Limiter, "login", deps.TrustProxy)(http.HandlerFunc(users.Login)))
	mux.Handle("/api/v1/users/refresh-token", middleware.RateLimit(deps.Limiter, "refresh", deps.TrustProxy)(http.HandlerFunc(users.Refresh)))
	mux.Handle("/api/v1/users/logout", requireAuth(http.HandlerFunc(users.Logout)))
	mux.Handle("/api/v1/users/current-user", requireAuth(http.HandlerFunc(users.CurrentUser)))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts     AccountService
	Tokens       middleware.AccessTokenVerifier
	Uploads      ImageSpool
	Limiter      middleware.RateLimiter
	TrustProxy   bool
	Cookies      CookieSettings
	MaxBodyBytes int64
	HealthChecks map[string]HealthCheck
}

// CookieSettings controls the token cookies set on login and refresh.
type CookieSettings struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

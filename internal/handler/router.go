package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
	"github.com/aryan0dhankhar/smartcrm/internal/security/audit"
	"github.com/aryan0dhankhar/smartcrm/internal/security/middleware"
	"github.com/aryan0dhankhar/smartcrm/internal/security/ratelimit"
)

const maxRequestBody = 1 << 20

// RouterConfig bundles what the HTTP surface is assembled from.
type RouterConfig struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Organizations *OrganizationHandler
	Leads         *LeadHandler
	Complaints    *ComplaintHandler
	Health        *HealthHandler
	Metrics       http.Handler // served on /metrics when set

	Authenticator middleware.Authenticator
	RateLimiter   *ratelimit.Limiter
	AuditLog      *audit.Logger
	CORSOrigins   []string
	Logger        *slog.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", cfg.Health.Health)
	mux.HandleFunc("GET /readyz", cfg.Health.Ready)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("POST /api/v1/auth/register", cfg.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", cfg.Auth.Login)
	mux.HandleFunc("GET /api/v1/auth/me", cfg.Auth.Me)
	mux.HandleFunc("POST /api/v1/auth/change-password", cfg.Auth.ChangePassword)
	mux.HandleFunc("POST /api/v1/auth/logout", cfg.Auth.Logout)

	mux.HandleFunc("GET /api/v1/leads", cfg.Leads.List)
	mux.HandleFunc("POST /api/v1/leads", cfg.Leads.Create)
	mux.HandleFunc("GET /api/v1/leads/{id}", cfg.Leads.Get)
	mux.HandleFunc("PUT /api/v1/leads/{id}", cfg.Leads.Update)
	mux.HandleFunc("DELETE /api/v1/leads/{id}", cfg.Leads.Delete)
	mux.HandleFunc("POST /api/v1/leads/{id}/score", cfg.Leads.Score)

	mux.HandleFunc("GET /api/v1/complaints", cfg.Complaints.List)
	mux.HandleFunc("POST /api/v1/complaints", cfg.Complaints.Create)
	mux.HandleFunc("GET /api/v1/complaints/{id}", cfg.Complaints.Get)
	mux.HandleFunc("PUT /api/v1/complaints/{id}", cfg.Complaints.Update)
	mux.HandleFunc("DELETE /api/v1/complaints/{id}", cfg.Complaints.Delete)
	mux.HandleFunc("POST /api/v1/complaints/{id}/classify", cfg.Complaints.Classify)

	mux.HandleFunc("GET /api/v1/users", cfg.Users.List)
	mux.HandleFunc("GET /api/v1/users/{id}", cfg.Users.Get)
	mux.HandleFunc("PUT /api/v1/users/{id}", cfg.Users.Update)
	mux.HandleFunc("DELETE /api/v1/users/{id}", cfg.Users.Delete)

	mux.HandleFunc("GET /api/v1/organizations", cfg.Organizations.List)
	mux.HandleFunc("POST /api/v1/organizations", cfg.Organizations.Create)
	mux.HandleFunc("GET /api/v1/organizations/{id}", cfg.Organizations.Get)
	mux.HandleFunc("PUT /api/v1/organizations/{id}", cfg.Organizations.Update)
	mux.HandleFunc("DELETE /api/v1/organizations/{id}", cfg.Organizations.Delete)
	mux.HandleFunc("PUT /api/v1/organizations/{id}/subscription", cfg.Organizations.UpgradeSubscription)

	// innermost first
	var h http.Handler = mux
	h = middleware.ValidateJSONContentType(logger)(h)
	h = middleware.MaxBodySize(maxRequestBody)(h)
	if cfg.AuditLog != nil {
		h = middleware.AuditMiddleware(cfg.AuditLog)(h)
	}
	if cfg.RateLimiter != nil {
		h = middleware.RateLimitMiddleware(cfg.RateLimiter, logger)(h)
	}
	h = middleware.PasswordChangeGate(h)
	h = middleware.JWTMiddleware(cfg.Authenticator, logger)(h)
	h = middleware.ValidateQuery(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = metrics.HTTPMetricsMiddleware(h)
	h = middleware.RequestID(logger)(h)
	return h
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
	"github.com/aryan0dhankhar/smartcrm/internal/security/audit"
	"github.com/aryan0dhankhar/smartcrm/internal/security/auth"
	"github.com/aryan0dhankhar/smartcrm/internal/security/ratelimit"
)

type principalContextKey struct{}
type claimsContextKey struct{}

// Authenticator turns a bearer token into the principal behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, *auth.Claims, error)
}

// PublicPaths are served without a token.
var PublicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/v1/auth/login",
}

// passwordChangePaths stay reachable while a user still holds a temporary password.
var passwordChangePaths = []string{
	"/api/v1/auth/me",
	"/api/v1/auth/change-password",
	"/api/v1/auth/logout",
}

func isPublic(path string) bool {
	for _, p := range PublicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// JWTMiddleware authenticates every non-public request and stores the
// principal and token claims in the request context.
func JWTMiddleware(authn Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := auth.ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}

			p, claims, err := authn.Authenticate(r.Context(), tokenString)
			if err != nil {
				if errors.Is(err, domain.ErrServiceUnavailable) {
					log.Error("authentication backend unavailable", slog.String("error", err.Error()))
					writeError(w, http.StatusServiceUnavailable, "service unavailable")
					return
				}
				if errors.Is(err, domain.ErrUnauthenticated) {
					writeError(w, http.StatusUnauthorized, "account is deactivated")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p, claims)))
		})
	}
}

// PasswordChangeGate confines users holding a temporary password to the
// endpoints needed to replace it.
func PasswordChangeGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.MustChangePassword {
			next.ServeHTTP(w, r)
			return
		}
		for _, allowed := range passwordChangePaths {
			if r.URL.Path == allowed {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, domain.ErrPasswordChangeRequired.Error())
	})
}

// RateLimitMiddleware limits authenticated callers per user and anonymous
// callers per client address.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + clientIP(r)
			if p, ok := PrincipalFromContext(r.Context()); ok {
				key = "user:" + p.UserID.String()
			}

			d := limiter.Check(key)
			if !d.Allow {
				metrics.IncrementRateLimited()
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				if d.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Round(time.Second).Seconds())))
				}
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AuditMiddleware records every state-changing request with its outcome.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			orgID, userID := "", ""
			if p, ok := PrincipalFromContext(r.Context()); ok {
				userID = p.UserID.String()
				if p.OrganizationID != nil {
					orgID = p.OrganizationID.String()
				}
			}
			auditLog.LogMutation(r.Context(), orgID, userID, r.Method, r.URL.Path, strconv.Itoa(rec.status))
		})
	}
}

// RequestID tags the request with an id, taken from X-Request-ID when the
// caller supplies a sane one, and logs completion.
func RequestID(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" || len(reqID) > 64 || strings.ContainsAny(reqID, " \t\r\n") {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)
			start := time.Now()

			next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), reqID)))

			log.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// CORS allows the configured origins. An empty list disables CORS headers.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func WithPrincipal(ctx context.Context, p domain.Principal, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, principalContextKey{}, p)
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return p, ok
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(claimsContextKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

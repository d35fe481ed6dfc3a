package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ValidateJSONContentType middleware ensures POST/PUT requests have JSON content type
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only validate POST, PUT, PATCH requests
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			// Allow requests without body (health checks, etc.)
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize caps request bodies. Handlers see a decode error once the
// limit is crossed.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// queryRules lists the query parameters the API reads and the shape each
// value must have. Anything else is rejected before routing.
var queryRules = map[string]func(string) bool{
	"status":      isEnumToken,
	"role":        isEnumToken,
	"assigned_to": func(v string) bool { return uuid.Validate(v) == nil },
	"active":      isBool,
	"hard":        isBool,
}

func isEnumToken(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c < 'a' || c > 'z') && c != '_' {
			return false
		}
	}
	return true
}

func isBool(v string) bool {
	_, err := strconv.ParseBool(v)
	return err == nil
}

// ValidateQuery rejects unknown query parameters, repeated parameters and
// values that cannot be a status, role, id or boolean, as well as paths
// with traversal segments.
func ValidateQuery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path pattern detected", slog.String("path", r.URL.Path))
				writeError(w, http.StatusBadRequest, "invalid path")
				return
			}

			for key, values := range r.URL.Query() {
				valid, known := queryRules[key]
				if !known {
					writeError(w, http.StatusBadRequest, "unknown query parameter: "+key)
					return
				}
				if len(values) != 1 || !valid(values[0]) {
					log.Warn("invalid query parameter",
						slog.String("path", r.URL.Path),
						slog.String("param", key),
					)
					writeError(w, http.StatusBadRequest, "invalid value for query parameter: "+key)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

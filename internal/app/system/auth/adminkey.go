package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/system/jsonutil"
)

// AdminKeyAuth returns middleware that validates the administrative key
// protecting the reporting and maintenance endpoints.
//
// The key may be supplied either in the Authorization header using the
// Bearer scheme ("Authorization: Bearer <key>") or as the adminKey
// query parameter, which is what the dashboard's report page sends.
//
// If the key is invalid or missing, returns a 401 JSON envelope. If no
// key is configured (empty), logs a warning and rejects all requests.
func AdminKeyAuth(validKey string, logger *zap.Logger) func(http.Handler) http.Handler {
	if validKey == "" {
		logger.Warn("admin key not configured - all admin requests will be rejected")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validKey == "" {
				logger.Warn("admin request rejected: admin key not configured",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "admin authentication not configured")
				return
			}

			provided := r.URL.Query().Get("adminKey")
			if provided == "" {
				authHeader := r.Header.Get("Authorization")
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					provided = parts[1]
				}
			}
			if provided == "" {
				logger.Debug("admin request rejected: missing admin key",
					zap.String("path", r.URL.Path),
				)
				jsonutil.Unauthorized(w, "missing admin key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(validKey)) != 1 {
				logger.Warn("admin request rejected: invalid admin key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

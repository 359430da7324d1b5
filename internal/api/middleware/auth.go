// Package middleware provides the HTTP middleware chain: request
// tracing, JWT bearer authentication and rate limiting.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/service/auth"
)

// Auth returns middleware that requires a valid Bearer access token and
// stores the authenticated user's identity in the request context.
func Auth(jwtService auth.JWTService, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("middleware", "auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				shared.RespondWithError(w, http.StatusUnauthorized,
					service.CodeUnauthorized, "authorization header required", nil)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				shared.RespondWithError(w, http.StatusUnauthorized,
					service.CodeUnauthorized, "authorization header must be a Bearer token", nil)
				return
			}

			claims, err := jwtService.ValidateToken(r.Context(), parts[1])
			if err != nil {
				log.Debug("token validation failed", "error", err)
				shared.RespondWithError(w, http.StatusUnauthorized,
					service.CodeUnauthorized, "invalid or expired token", nil)
				return
			}

			ctx := shared.WithUserID(r.Context(), claims.UserID)
			ctx = shared.WithUserEmail(ctx, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

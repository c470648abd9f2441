package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fleetdesk/dispatch/common/jwt"
	commonMiddleware "github.com/fleetdesk/dispatch/common/middleware"
	"github.com/fleetdesk/dispatch/common/response"
	"github.com/fleetdesk/dispatch/internal/auth"
)

// RequireDriver validates the bearer session token and binds the resolved
// driver identity to the request context. The token is checked on every
// request; a session established earlier is never trusted across requests.
func (app *Config) RequireDriver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := jwt.ValidateToken(parts[1], app.JWTSecret)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.Unauthorized(w, "Session has expired")
				return
			}
			commonMiddleware.GetRequestLogger(r.Context()).Warn("Rejected session token", "error", err.Error())
			response.Unauthorized(w, "Invalid session token")
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{
			DriverID: claims.DriverID,
			Name:     claims.DriverName,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package middleware provides the JWT bearer authentication and role gates.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/token"
)

// claimsKey is the echo context key holding the session claims.
const claimsKey = "session_claims"

// RequireAuth parses the bearer token and stores its claims in the context.
func RequireAuth(tokens *token.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// RequireRole gates a route to users carrying the given role. It must run
// after RequireAuth.
func RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := Claims(c)
			if claims == nil || claims.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// Claims returns the session claims set by RequireAuth, or nil.
func Claims(c echo.Context) *token.Claims {
	claims, _ := c.Get(claimsKey).(*token.Claims)
	return claims
}

// UserID returns the authenticated user's ID, or 0 when unauthenticated.
func UserID(c echo.Context) int64 {
	claims := Claims(c)
	if claims == nil {
		return 0
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

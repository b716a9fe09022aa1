// Package middleware holds the request gate every protected route
// passes through, plus the login rate limiter.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/model"
)

// Context keys written by Authenticate and read by the accessors
// below and by handlers.
const (
	ctxClaims = "auth_claims"
	ctxUser   = "auth_user"
	ctxRole   = "auth_role"
)

// Authenticate verifies the Bearer access token and re-checks the
// live user record on every request. A deactivated or deleted user
// is rejected immediately even while their access token is still
// cryptographically valid. On success the user, role and claims are
// attached to the request context.
func Authenticate(authority *auth.Authority, dir auth.UserDirectory, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return unauthorized(c)
			}
			claims, err := authority.VerifyAccess(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return unauthorized(c)
			}
			uid, err := claims.UserID()
			if err != nil {
				return unauthorized(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			user, err := dir.GetByID(ctx, uid)
			if err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					return unauthorized(c)
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user lookup failed"})
			}
			if !user.IsActive {
				return unauthorized(c)
			}

			role, err := dir.GetRoleByID(ctx, user.RoleID)
			if err != nil && !errors.Is(err, auth.ErrNotFound) {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role lookup failed"})
			}
			// A dangling role id leaves role nil; permission checks
			// fail closed on it.

			c.Set(ctxClaims, claims)
			c.Set(ctxUser, user)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// RequirePermission rejects with 403 unless the authenticated user's
// role grants the named permission. Must run after Authenticate.
func RequirePermission(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.HasPermission(CurrentRole(c), name) {
				return forbidden(c)
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects with 403 unless the authenticated user's role
// carries the admin flag.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := CurrentRole(c)
			if role == nil || !role.IsAdmin {
				return forbidden(c)
			}
			return next(c)
		}
	}
}

// CurrentUser returns the user Authenticate attached, or nil.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(ctxUser).(*model.User)
	return u
}

// CurrentRole returns the role Authenticate attached; nil when the
// user's role id did not resolve.
func CurrentRole(c echo.Context) *model.Role {
	r, _ := c.Get(ctxRole).(*model.Role)
	return r
}

// CurrentClaims returns the verified access-token claims, or nil.
func CurrentClaims(c echo.Context) *auth.Claims {
	cl, _ := c.Get(ctxClaims).(*auth.Claims)
	return cl
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

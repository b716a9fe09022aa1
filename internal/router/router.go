// Package router wires HTTP routes to handlers and hangs the
// request gate on every protected group.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/handler"
	"github.com/sdeskhq/support-desk/internal/middleware"
)

// Deps carries everything route registration needs.
type Deps struct {
	Auth      *handler.AuthHandler
	UserAdmin *handler.UserAdminHandler
	RoleAdmin *handler.RoleAdminHandler
	Tickets   *handler.TicketHandler

	Gate       echo.MiddlewareFunc // middleware.Authenticate, built in main
	LoginLimit echo.MiddlewareFunc // middleware.LoginRateLimit, built in main
}

// RegisterRoutes registers the unauthenticated surface.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the full v1 surface. Everything outside
// /v1/auth/{login,refresh,logout} passes through the gate; admin
// surfaces additionally require their permissions.
func RegisterAPI(e *echo.Echo, d Deps) {
	// Credential exchange; no session required. Login sits behind
	// the per-IP+username limiter.
	g := e.Group("/v1/auth")
	g.POST("/login", d.Auth.Login, d.LoginLimit)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout)

	// Everything below requires a verified access token and a live,
	// active user.
	v1 := e.Group("/v1", d.Gate)

	v1.POST("/auth/logout-all", d.Auth.LogoutAll)
	v1.GET("/me", d.Auth.Me)
	v1.PUT("/me/password", d.Auth.ChangePassword)
	v1.GET("/me/sessions", d.Auth.Sessions)

	v1.GET("/users", d.UserAdmin.List, middleware.RequirePermission(auth.PermUsersView))
	v1.POST("/users", d.UserAdmin.Create, middleware.RequirePermission(auth.PermUsersManage))
	v1.PUT("/users/:id", d.UserAdmin.Update, middleware.RequirePermission(auth.PermUsersManage))
	v1.DELETE("/users/:id", d.UserAdmin.Delete, middleware.RequirePermission(auth.PermUsersManage))

	v1.GET("/roles", d.RoleAdmin.List, middleware.RequirePermission(auth.PermRolesView))
	v1.POST("/roles", d.RoleAdmin.Create, middleware.RequireAdmin())
	v1.PUT("/roles/:id", d.RoleAdmin.Update, middleware.RequireAdmin())
	v1.DELETE("/roles/:id", d.RoleAdmin.Delete, middleware.RequireAdmin())

	// Ticket routes authorize per row: owners always, wide viewers/
	// editors everywhere.
	v1.GET("/tickets", d.Tickets.List)
	v1.POST("/tickets", d.Tickets.Create)
	v1.GET("/tickets/:id", d.Tickets.Get)
	v1.PUT("/tickets/:id", d.Tickets.Update)
	v1.DELETE("/tickets/:id", d.Tickets.Delete)
}

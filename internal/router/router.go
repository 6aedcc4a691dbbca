package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/handler"
	"github.com/iliyamo/library-seat-reservation/internal/middleware"
	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// Role sets accepted on each route group.
var (
	anyRole   = []string{string(engine.RoleStudent), string(engine.RoleOutsider), model.AdminRoleAdmin, model.AdminRoleAssistant}
	staffRole = []string{model.AdminRoleAdmin, model.AdminRoleAssistant}
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", h.Ready)
}

// RegisterAuth registers /v1/auth and /v1/me.  Register, login, refresh and
// logout need no access token; logout accepts either a refresh token in the
// body or a bearer.  /v1/me reads and edits the caller's own account, and
// password changes share the auth rate limit.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me", middleware.JWTAuth(jwtSecret), middleware.RequireRole(anyRole...))
	me.GET("", a.Me)
	me.PATCH("", a.UpdateProfile)
	me.PUT("/password", a.ChangePassword, limit)
}

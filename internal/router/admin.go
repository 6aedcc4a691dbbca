package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/handler"
	"github.com/iliyamo/library-seat-reservation/internal/middleware"
	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// RegisterAdmin registers the staff endpoints under /v1/admin and the
// settings document.  Changing the policy is reserved to admins.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, s *handler.SettingsHandler, jwtSecret string, write echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)

	g := e.Group("/v1/admin", auth, middleware.RequireRole(staffRole...))
	g.GET("/reservations", a.ListReservations)
	g.POST("/reservations", a.CreateReservation, write)
	g.PUT("/users/:id/ban", a.BanUser, write)
	g.DELETE("/users/:id/ban", a.LiftBan, write)
	g.GET("/users", a.ListUsers)
	g.POST("/users/:id/points", a.AdjustPoints, write)
	g.PUT("/users/:id/role", a.SetAdminRole, middleware.RequireRole(model.AdminRoleAdmin), write)

	e.GET("/v1/settings", s.Get, auth, middleware.RequireRole(anyRole...))
	e.PUT("/v1/settings", s.Update, auth, middleware.RequireRole(model.AdminRoleAdmin), write)
}

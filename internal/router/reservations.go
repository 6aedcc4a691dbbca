package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/handler"
	"github.com/iliyamo/library-seat-reservation/internal/middleware"
)

// RegisterReservations registers the patron reservation endpoints.  Every
// mutation passes the write limiter.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, write echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations", middleware.JWTAuth(jwtSecret), middleware.RequireRole(anyRole...))
	g.GET("/me", h.Mine)
	g.POST("", h.Create, write)
	g.POST("/check", h.Check)
	g.DELETE("/:id", h.Cancel, write)
	g.POST("/:id/terminate", h.Terminate, write)
	g.POST("/:id/checkin", h.CheckIn, write)
	g.POST("/:id/leave", h.Leave, write)
	g.POST("/:id/return", h.Return, write)
}

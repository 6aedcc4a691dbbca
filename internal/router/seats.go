package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/handler"
	"github.com/iliyamo/library-seat-reservation/internal/middleware"
)

// RegisterSeats registers the seat endpoints.  Reads go through the
// response cache; writes are staff only.
func RegisterSeats(e *echo.Echo, h *handler.SeatHandler, jwtSecret string, cache, write echo.MiddlewareFunc) {
	g := e.Group("/v1/seats", middleware.JWTAuth(jwtSecret), middleware.RequireRole(anyRole...))
	g.GET("", h.List, cache)
	g.GET("/:id", h.Get, cache)

	staff := middleware.RequireRole(staffRole...)
	g.POST("", h.Create, staff, write)
	g.PATCH("/:id", h.Update, staff, write)
}

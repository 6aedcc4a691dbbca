// Package handler holds the echo handlers of the HTTP API.  Handlers bind
// and check input, call the services and map their errors onto status codes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/middleware"
	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
	"github.com/iliyamo/library-seat-reservation/internal/service"
)

const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID returns the authenticated user id or an error when the route
// was registered without JWTAuth.
func getUserID(c echo.Context) (string, error) {
	if id := middleware.UserID(c); id != "" {
		return id, nil
	}
	return "", errors.New("invalid user_id in context")
}

func isAdminRole(role string) bool {
	return role == model.AdminRoleAdmin || role == model.AdminRoleAssistant
}

// actor describes the caller for service calls.
func actor(c echo.Context) service.Actor {
	return service.Actor{UserID: middleware.UserID(c), Admin: isAdminRole(middleware.Role(c))}
}

// parseWindow reads ?begin=&end= as RFC 3339.  Both or neither must be set.
func parseWindow(c echo.Context) (*engine.TimeRange, error) {
	b, e := c.QueryParam("begin"), c.QueryParam("end")
	if b == "" && e == "" {
		return nil, nil
	}
	if b == "" || e == "" {
		return nil, errors.New("begin and end must be given together")
	}
	begin, err := time.Parse(time.RFC3339, b)
	if err != nil {
		return nil, errors.New("begin must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, e)
	if err != nil {
		return nil, errors.New("end must be RFC 3339")
	}
	if !end.After(begin) {
		return nil, errors.New("end must be after begin")
	}
	return &engine.TimeRange{Start: begin, End: end}, nil
}

// optionalTime parses an RFC 3339 query parameter; empty yields nil.
func optionalTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.New(name + " must be RFC 3339")
	}
	return &t, nil
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

type page struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// respondError maps service and repository errors onto HTTP responses.
func respondError(c echo.Context, err error) error {
	var rej *engine.Rejection
	switch {
	case errors.As(err, &rej):
		status := http.StatusUnprocessableEntity
		if rej.Reason == engine.ReasonSeatTimeConflict || rej.Reason == engine.ReasonUserDoubleBooking {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": rej.Reason, "detail": rej.Detail})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrUserBanned):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "user is banned"})
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrOwnAdminRole),
		errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrInvalidPolicy):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.Set(middleware.ContextError, err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "timeout"})
	}
	c.Set(middleware.ContextError, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

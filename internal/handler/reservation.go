package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/service"
)

// ReservationHandler serves the patron reservation endpoints.
type ReservationHandler struct {
	Svc *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

type reservationReq struct {
	SeatID    string    `json:"seat_id"`
	BeginTime time.Time `json:"begin_time"`
	EndTime   time.Time `json:"end_time"`
}

func (r reservationReq) check() string {
	switch {
	case r.SeatID == "":
		return "seat_id required"
	case r.BeginTime.IsZero() || r.EndTime.IsZero():
		return "begin_time and end_time required"
	}
	return ""
}

// Create handles POST /v1/reservations for the caller.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.check(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	in := service.CreateInput{UserID: uid, SeatID: req.SeatID, Begin: req.BeginTime, End: req.EndTime}
	res, err := h.Svc.Create(ctx, in, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Check handles POST /v1/reservations/check: it reports whether Create
// would accept the request right now, without booking.
func (h *ReservationHandler) Check(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.check(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	outcome, err := h.Svc.Check(ctx, service.CreateInput{UserID: uid, SeatID: req.SeatID, Begin: req.BeginTime, End: req.EndTime})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// Mine handles GET /v1/reservations/me?limit=&offset=.
func (h *ReservationHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	limit, offset := service.PageLimit(queryInt(c, "limit")), max(queryInt(c, "offset"), 0)
	items, total, err := h.Svc.ListFor(ctx, uid, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page{Total: total, Limit: limit, Offset: offset}})
}

type transitionFunc func(ctx context.Context, id string, a service.Actor) (*model.Reservation, error)

// transition runs one lifecycle step on the reservation in the path.
func (h *ReservationHandler) transition(c echo.Context, step transitionFunc) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := step(ctx, c.Param("id"), actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.Svc.Cancel(ctx, c.Param("id"), actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Terminate handles POST /v1/reservations/:id/terminate.
func (h *ReservationHandler) Terminate(c echo.Context) error {
	return h.transition(c, h.Svc.Terminate)
}

// CheckIn handles POST /v1/reservations/:id/checkin.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	return h.transition(c, h.Svc.CheckIn)
}

// Leave handles POST /v1/reservations/:id/leave.
func (h *ReservationHandler) Leave(c echo.Context) error {
	return h.transition(c, h.Svc.Leave)
}

// Return handles POST /v1/reservations/:id/return.
func (h *ReservationHandler) Return(c echo.Context) error {
	return h.transition(c, h.Svc.Return)
}

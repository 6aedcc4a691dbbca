package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/middleware"
	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/service"
)

// SeatHandler serves seat listings with their derived status and the
// admin seat endpoints.
type SeatHandler struct {
	Svc *service.ReservationService
}

func NewSeatHandler(svc *service.ReservationService) *SeatHandler {
	if svc == nil {
		panic("nil service passed to NewSeatHandler")
	}
	return &SeatHandler{Svc: svc}
}

// List handles GET /v1/seats?begin=&end=.
func (h *SeatHandler) List(c echo.Context) error {
	window, err := parseWindow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	out, err := h.Svc.Availability(ctx, window)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/seats/:id.  Patrons see who booked only through the
// reservation times; user details are for staff.
func (h *SeatHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	seat, rows, err := h.Svc.SeatDetail(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !isAdminRole(middleware.Role(c)) {
		for i := range rows {
			rows[i].User = nil
			rows[i].UserID = ""
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"seat": seat, "reservations": rows})
}

type createSeatReq struct {
	ID        string  `json:"id"`
	Available *bool   `json:"available"`
	OtherInfo *string `json:"other_info"`
}

// Create handles POST /v1/seats (staff).
func (h *SeatHandler) Create(c echo.Context) error {
	var req createSeatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.ID = strings.ToUpper(strings.TrimSpace(req.ID))
	if req.ID == "" || len(req.ID) > 16 {
		return badRequest(c, "id must be 1-16 characters")
	}
	seat := model.Seat{ID: req.ID, Available: true, OtherInfo: trimmed(req.OtherInfo)}
	if req.Available != nil {
		seat.Available = *req.Available
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	created, err := h.Svc.CreateSeat(ctx, seat)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

type updateSeatReq struct {
	Available *bool   `json:"available"`
	OtherInfo *string `json:"other_info"`
}

// Update handles PATCH /v1/seats/:id (staff).
func (h *SeatHandler) Update(c echo.Context) error {
	var req updateSeatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Available == nil && req.OtherInfo == nil {
		return badRequest(c, "nothing to update")
	}
	if req.OtherInfo != nil && len(*req.OtherInfo) > 255 {
		return badRequest(c, "other_info too long")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	seat, err := h.Svc.UpdateSeat(ctx, c.Param("id"), req.Available, req.OtherInfo)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, seat)
}

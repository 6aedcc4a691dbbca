package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
	"github.com/iliyamo/library-seat-reservation/internal/model"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
	"github.com/iliyamo/library-seat-reservation/internal/service"
)

// AdminHandler serves the front-desk endpoints used by admins and
// assistants.
type AdminHandler struct {
	Svc   *service.ReservationService
	Users *repository.UserRepo
}

func NewAdminHandler(svc *service.ReservationService, users *repository.UserRepo) *AdminHandler {
	if svc == nil || users == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Svc: svc, Users: users}
}

// ListReservations handles GET /v1/admin/reservations.  Supported filters:
// user_id, role, seat_id, begin_from, begin_to, end_from, end_to, plus
// limit and offset.
func (h *AdminHandler) ListReservations(c echo.Context) error {
	f := model.ReservationFilter{
		UserID:   c.QueryParam("user_id"),
		UserRole: c.QueryParam("role"),
		SeatID:   c.QueryParam("seat_id"),
		Limit:    service.PageLimit(queryInt(c, "limit")),
		Offset:   max(queryInt(c, "offset"), 0),
	}
	if f.UserRole != "" && !engine.Role(f.UserRole).Valid() {
		return badRequest(c, "role must be student or outsider")
	}
	var err error
	for name, dst := range map[string]**time.Time{
		"begin_from": &f.BeginTimeStart,
		"begin_to":   &f.BeginTimeEnd,
		"end_from":   &f.EndTimeStart,
		"end_to":     &f.EndTimeEnd,
	} {
		if *dst, err = optionalTime(c, name); err != nil {
			return badRequest(c, err.Error())
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := h.Svc.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.ReservationWithUser{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page{Total: total, Limit: f.Limit, Offset: f.Offset}})
}

type adminReservationReq struct {
	IDCard string `json:"id_card"`
	reservationReq
}

// CreateReservation handles POST /v1/admin/reservations: staff book on
// behalf of the patron holding the library card.  Every policy rule still
// applies.
func (h *AdminHandler) CreateReservation(c echo.Context) error {
	var req adminReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.IDCard = strings.TrimSpace(req.IDCard)
	if req.IDCard == "" {
		return badRequest(c, "id_card required")
	}
	if msg := req.check(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByIDCard(ctx, req.IDCard)
	if err != nil {
		return respondError(c, err)
	}
	in := service.CreateInput{UserID: u.ID, SeatID: req.SeatID, Begin: req.BeginTime, End: req.EndTime}
	res, err := h.Svc.Create(ctx, in, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

type banReq struct {
	Until  time.Time `json:"until"`
	Reason string    `json:"reason"`
}

// BanUser handles PUT /v1/admin/users/:id/ban.
func (h *AdminHandler) BanUser(c echo.Context) error {
	var req banReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Until.IsZero() {
		return badRequest(c, "until required")
	}
	reason := trimmed(&req.Reason)

	ctx, cancel := requestContext(c)
	defer cancel()

	until := req.Until.UTC()
	if err := h.Users.SetBan(ctx, c.Param("id"), &until, reason); err != nil {
		return respondError(c, err)
	}
	return h.userSummary(c, c.Param("id"))
}

// LiftBan handles DELETE /v1/admin/users/:id/ban.
func (h *AdminHandler) LiftBan(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.SetBan(ctx, c.Param("id"), nil, nil); err != nil {
		return respondError(c, err)
	}
	return h.userSummary(c, c.Param("id"))
}

// ListUsers handles GET /v1/admin/users.  Filters: q (substring of email,
// name or library card) and role, plus limit and offset.  Each item tells
// whether the user is in the library right now.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	f := model.UserFilter{
		Query:    c.QueryParam("q"),
		UserRole: c.QueryParam("role"),
		Limit:    service.PageLimit(queryInt(c, "limit")),
		Offset:   max(queryInt(c, "offset"), 0),
	}
	if f.UserRole != "" && !engine.Role(f.UserRole).Valid() {
		return badRequest(c, "role must be student or outsider")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := h.Svc.ListUsers(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.UserListing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "page": page{Total: total, Limit: f.Limit, Offset: f.Offset}})
}

type adminRoleReq struct {
	AdminRole *string `json:"admin_role"` // admin | assistant; null or "" revokes
}

// SetAdminRole handles PUT /v1/admin/users/:id/role.  The new role shows up
// in the user's tokens from their next login or refresh.
func (h *AdminHandler) SetAdminRole(c echo.Context) error {
	var req adminRoleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	role := trimmed(req.AdminRole)
	if role != nil && !model.ValidAdminRole(*role) {
		return badRequest(c, "admin_role must be admin, assistant or empty")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Svc.SetAdminRole(ctx, c.Param("id"), role, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u.Summary())
}

type pointsReq struct {
	Delta int `json:"delta"`
}

// AdjustPoints handles POST /v1/admin/users/:id/points with {"delta": n}.
// A negative delta forgives points.
func (h *AdminHandler) AdjustPoints(c echo.Context) error {
	var req pointsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Delta == 0 {
		return badRequest(c, "delta must not be zero")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Svc.AdjustPoints(ctx, c.Param("id"), req.Delta, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u.Summary())
}

func (h *AdminHandler) userSummary(c echo.Context, id string) error {
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u.Summary())
}

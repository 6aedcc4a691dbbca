package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-seat-reservation/internal/service"
)

// SettingsHandler exposes the booking policy document.
type SettingsHandler struct {
	Policy *service.PolicyStore
	Cache  *service.CacheGeneration
}

func NewSettingsHandler(policy *service.PolicyStore, cache *service.CacheGeneration) *SettingsHandler {
	if policy == nil {
		panic("nil policy store passed to NewSettingsHandler")
	}
	return &SettingsHandler{Policy: policy, Cache: cache}
}

// Get handles GET /v1/settings.
func (h *SettingsHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := h.Policy.Document(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// Update handles PUT /v1/settings.  The body is a partial document; keys
// not present keep their value.
func (h *SettingsHandler) Update(c echo.Context) error {
	var values map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&values); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(values) == 0 {
		return badRequest(c, "nothing to update")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := h.Policy.Update(ctx, values)
	if err != nil {
		return respondError(c, err)
	}
	h.Cache.Bump(ctx)
	return c.JSON(http.StatusOK, doc)
}

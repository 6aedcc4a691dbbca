package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that lets a request through only when
// the authenticated role is one of roles.  The values are compared with the
// "role" claim of the access token: a patron role (student, outsider) or an
// admin role (admin, assistant) when the account holds one.  Any other role,
// or none at all, aborts the request with 403 Forbidden.  It reads the role
// stored by JWTAuth, so it must be chained after it.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

package middleware

import "github.com/labstack/echo/v4"

// Context keys.  ContextUserID and ContextRole are set by JWTAuth;
// handlers store the error behind a 5xx under ContextError for the request
// log.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextError  = "error"
)

// UserID returns the subject of the access token that JWTAuth stored under
// ContextUserID.  It returns "" when the route is public or the value is
// missing, which callers treat as a guest.
func UserID(c echo.Context) string {
	s, _ := c.Get(ContextUserID).(string)
	return s
}

// Role returns the role claim stored under ContextRole.  Staff tokens carry
// their admin role here instead of the patron role.  It returns "" for
// guests.
func Role(c echo.Context) string {
	s, _ := c.Get(ContextRole).(string)
	return s
}

func userOrAnon(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}

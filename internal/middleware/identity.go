package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated caller's id.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated caller's role.
func Role(c echo.Context) (string, bool) {
	r, ok := c.Get(roleKey).(string)
	return r, ok && r != ""
}

// callerKey identifies the caller for rate limiting: the user id when
// authenticated, "anon" otherwise.
func callerKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

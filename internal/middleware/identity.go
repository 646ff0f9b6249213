package middleware

// identity.go exposes the caller identity that JWTAuth stored in the Echo
// context. The rate limiter and response cache use the same lookup so that
// anonymous callers share one bucket per IP.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/model"
)

// Identity returns the authenticated user's ID and role. ok is false when
// the request did not pass through JWTAuth.
func Identity(c echo.Context) (userID, role string, ok bool) {
	userID, _ = c.Get(ctxUserID).(string)
	role, _ = c.Get(ctxRole).(string)
	return userID, role, userID != ""
}

// IsAdmin reports whether the caller carries the ADMIN role.
func IsAdmin(c echo.Context) bool {
	_, role, ok := Identity(c)
	return ok && role == model.RoleAdmin
}

// currentUserID returns the caller's ID, or "anon" for unauthenticated
// requests.
func currentUserID(c echo.Context) string {
	if id, _, ok := Identity(c); ok {
		return id
	}
	return "anon"
}

package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/apperr"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. The roles accepted
// should correspond to the values stored in the JWT's "role" claim. It
// assumes JWTAuth already ran; a missing or unknown role is answered with
// 403 and the ADMIN_ONLY code.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ctxRole).(string)
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "forbidden",
					"code":  apperr.CodeAdminOnly,
				})
			}
			return next(c)
		}
	}
}

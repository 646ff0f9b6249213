package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/logging"
)

// statusFor maps a domain error class to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": message, "code": CODE}. Domain errors
// keep their message; anything else is logged and answered with a generic
// 500 so store details never reach the client.
func writeError(c echo.Context, logger *zap.Logger, err error) error {
	code := apperr.CodeOf(err)
	if code == "" {
		logging.Error(c.Request().Context(), logger, "request failed",
			zap.String("route", c.Path()),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "INTERNAL"})
	}
	body := echo.Map{"error": err.Error(), "code": code}
	if apperr.IsRetryable(err) {
		body["retryable"] = true
	}
	return c.JSON(statusFor(code.Kind()), body)
}

// requestContext bounds store calls made on behalf of c.
func requestContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), timeout)
}

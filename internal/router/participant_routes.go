package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/middleware"
	"github.com/iliyamo/event-reservation/internal/model"
)

// RegisterParticipant registers the reservation endpoints available to any
// signed-in user. Ownership is checked by the reservation engine, so admins
// reach the same routes. limiter guards reservation creation only.
func RegisterParticipant(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleParticipant, model.RoleAdmin),
	)
	if limiter != nil {
		g.POST("/events/:id/reservations", h.Create, limiter)
	} else {
		g.POST("/events/:id/reservations", h.Create)
	}
	g.GET("/my-reservations", h.ListMine)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/cancel", h.Cancel)
}

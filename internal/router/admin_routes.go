package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/middleware"
	"github.com/iliyamo/event-reservation/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin. All
// routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, rs *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Events ----
	g.GET("/events", ev.List)
	g.POST("/events", ev.Create)
	g.GET("/events/:id", ev.Get)
	g.PUT("/events/:id", ev.Update)
	g.POST("/events/:id/publish", ev.Publish)
	g.POST("/events/:id/cancel", ev.Cancel)

	// ---- Reservations ----
	g.GET("/events/:id/reservations", rs.ListByEvent)
	g.GET("/events/:id/stats", rs.Stats)
	g.PATCH("/reservations/:id/status", rs.SetStatus)
}

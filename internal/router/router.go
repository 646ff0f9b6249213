package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// liveness, readiness and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, deps map[string]handler.Pinger, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(deps))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers all authentication-related routes. Session
// creation and exchange live under /v1/auth and need no token; /v1/me
// requires one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// keeps the refresh token, returns only a new access token
	g.POST("/refresh-access", a.RefreshAccess)
	// accepts a refresh_token body or a bearer header
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the anonymous event catalogue. Responses go
// through the browse cache when one is configured.
func RegisterPublic(e *echo.Echo, h *handler.EventHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/events")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("", h.ListPublished)
	g.GET("/:id", h.GetPublished)
}

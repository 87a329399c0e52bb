// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/live-room-coordinator/internal/handler"
	"github.com/iliyamo/live-room-coordinator/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterUsers registers the user registry.  Creating a user is the only
// anonymous /v1 call; it still goes through the rate limiter, keyed by
// client address.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.POST("/v1/users", u.Create, limiter)

	g := e.Group("/v1/users", middleware.JWTAuth(jwtSecret), limiter)
	g.GET("/me", u.Me)
	g.PUT("/me", u.Update)
}

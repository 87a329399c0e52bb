package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/live-room-coordinator/internal/handler"
	"github.com/iliyamo/live-room-coordinator/internal/middleware"
)

// RegisterRooms registers the room endpoints under /v1/rooms.  All of them
// require a user token.  Only the lobby list is cached; member and result
// polls always read live state.
func RegisterRooms(e *echo.Echo, h *handler.RoomHandler, jwtSecret string, limiter, listCache echo.MiddlewareFunc) {
	g := e.Group("/v1/rooms", middleware.JWTAuth(jwtSecret), limiter)

	g.POST("", h.Create)
	g.GET("", h.List, listCache)
	g.POST("/:id/join", h.Join)
	g.GET("/:id/wait", h.Wait)
	g.POST("/:id/start", h.Start)
	g.POST("/:id/end", h.End)
	g.GET("/:id/result", h.Result)
	g.POST("/:id/leave", h.Leave)
}

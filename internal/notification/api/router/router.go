package router

import (
	"media_pipeline/internal/api/comm"
	"media_pipeline/internal/notification/app"
	"media_pipeline/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 註冊 notification 的路由
func RegisterRoutes(r *fiber.App, hub *app.Hub) {
	r.Get("/", comm.ConnectCheck(app.ServiceName))
	r.Post("/debug", comm.DebugLogFlag)

	r.Get("/ws", middlewares.JWTMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(hub.HandleConnection))
}

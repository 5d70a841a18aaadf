package router

import (
	"media_pipeline/internal/api/comm"
	"media_pipeline/internal/auth/api/handlers"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 注册 auth 路由
func RegisterRoutes(app *fiber.App, authHandler *handlers.AuthHandler) {
	app.Get("/", comm.ConnectCheck("auth"))
	app.Post("/debug", comm.DebugLogFlag)

	app.Post("/register", authHandler.Register)
	app.Post("/login", authHandler.Login)
	app.Post("/validate", authHandler.Validate)
}

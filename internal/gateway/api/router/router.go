package router

import (
	"media_pipeline/internal/api/comm"
	"media_pipeline/internal/gateway/api/handlers"
	"media_pipeline/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// RegisterRoutes 注册 gateway 路由
// @title Media Pipeline Gateway API
// @version 1.0
// @description Upload files for conversion and download the results
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(app *fiber.App, gatewayHandler *handlers.GatewayHandler) {
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", comm.ConnectCheck("gateway"))
	app.Post("/debug", comm.DebugLogFlag)

	auth := middlewares.JWTMiddleware()
	app.Post("/upload", auth, gatewayHandler.Upload)
	app.Get("/download", auth, gatewayHandler.Download)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "media_pipeline/cmd/gateway_service/docs" // 引入生成的 Swagger 文档
	"media_pipeline/internal/gateway/api/handlers"
	"media_pipeline/internal/gateway/api/router"
	"media_pipeline/internal/gateway/app"
	"media_pipeline/internal/pipeline/infra"
	"media_pipeline/pkg/config"
	"media_pipeline/pkg/logger"
	testtool "media_pipeline/pkg/test_tool"
	"media_pipeline/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.Gateway, config.EnvConfig.GatewayLogPath)
	defer logger.Log.Sync()

	cfg := config.MustLoadConfig[config.Gateway](config.EnvConfig.Gateway, config.EnvConfig.GatewayYAMLPath)
	token.SetSecret(cfg.JWTSecret)
	testtool.StartPprof(cfg.PprofAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 連線 blob store
	stores, err := infra.OpenStores(ctx, cfg.Store)
	if err != nil {
		logger.Log.Fatal("Unable to connect to blob store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer stores.Close(context.Background())

	// 2. 連線 RabbitMQ, 重試用盡就結束
	queue, err := infra.OpenQueue(ctx, cfg.RabbitMQ, cfg.Queues, 1)
	if err != nil {
		logger.Log.Fatal("Unable to connect to RabbitMQ", zap.Error(err))
	}
	defer queue.Close()

	queues := infra.QueueNames(cfg.Queues)
	gatewayHandler := handlers.NewGatewayHandler(
		app.NewGatewayUseCase(stores.Source, stores.Result, queue, queues.Job, cfg.DownloadExt),
	)

	bodyLimit := cfg.BodyLimitMB * 1024 * 1024
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}
	r := fiber.New(fiber.Config{BodyLimit: bodyLimit})

	// 添加日志中间件
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.GatewayLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open access log", zap.Error(err))
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, gatewayHandler)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down gateway")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := r.Listen(":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

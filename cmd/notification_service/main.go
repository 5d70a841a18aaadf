package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media_pipeline/internal/notification/api/router"
	"media_pipeline/internal/notification/app"
	"media_pipeline/internal/notification/repository"
	"media_pipeline/internal/pipeline/infra"
	"media_pipeline/pkg/config"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"
	testtool "media_pipeline/pkg/test_tool"
	"media_pipeline/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.Notification, config.EnvConfig.NotificationLogPath)
	defer logger.Log.Sync()

	cfg := config.MustLoadConfig[config.Notification](config.EnvConfig.Notification, config.EnvConfig.NotificationYAMLPath)
	token.SetSecret(cfg.JWTSecret)
	testtool.StartPprof(cfg.PprofAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. health grpc
	health := database.NewHealthServer(app.ServiceName)
	lis, err := net.Listen("tcp", ":"+cfg.HealthPort)
	if err != nil {
		logger.Log.Fatal("Failed to listen health port", zap.String("port", cfg.HealthPort), zap.Error(err))
	}
	go func() {
		if err := health.Serve(lis); err != nil {
			logger.Log.Error("health server stopped", zap.Error(err))
		}
	}()
	defer health.Stop()

	// 2. redis dedupe
	rdb, err := database.NewRedisClient(ctx, database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		MasterName:    cfg.Redis.MasterName,
		SentinelAddrs: cfg.Redis.SentinelAddrs,
		DB:            cfg.Redis.RedisDB,
		RetryCount:    cfg.Redis.RetryCount,
		RetryInterval: time.Duration(cfg.Redis.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()
	dedupe := repository.NewDedupeRepository(database.NewRedisRepository[int64](rdb))

	// 3. sinks
	hub := app.NewHub()
	sinks, err := app.NewSinks(ctx, cfg.Sinks, hub)
	if err != nil {
		logger.Log.Fatal("Unable to build notification sinks", zap.Error(err))
	}
	defer sinks.Close()
	logger.Log.Info("notification sinks ready", zap.String("sinks", sinks.Name()))

	// 4. websocket endpoint
	r := fiber.New(fiber.Config{DisableStartupMessage: true})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.NotificationLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open access log", zap.Error(err))
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))
	router.RegisterRoutes(r, hub)

	go func() {
		if err := r.Listen(":" + cfg.Port); err != nil {
			logger.Log.Error("websocket server stopped", zap.Error(err))
			stop()
		}
	}()
	defer r.ShutdownWithTimeout(5 * time.Second)

	queues := infra.QueueNames(cfg.Queues)
	consumer := &infra.Consumer{
		Name:  app.ServiceName,
		Queue: queues.Notification,
		Connect: func(ctx context.Context) (database.QueueClient, error) {
			return infra.OpenQueue(ctx, cfg.RabbitMQ, cfg.Queues, cfg.Workers)
		},
		Setup: func(queue database.QueueClient) (database.Handler, error) {
			return app.NewWorker(dedupe, sinks, cfg.Redis.DedupeTTL).Handle, nil
		},
		Health: health,
	}

	// 5. 連線 RabbitMQ 並開始消費, 重試用盡就結束
	if err := consumer.Run(ctx); err != nil {
		logger.Log.Fatal("notification stopped with error", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media_pipeline/internal/auth/api/handlers"
	"media_pipeline/internal/auth/api/router"
	"media_pipeline/internal/auth/app"
	"media_pipeline/internal/auth/repository"
	"media_pipeline/pkg/config"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"
	"media_pipeline/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.Auth, config.EnvConfig.AuthLogPath)
	defer logger.Log.Sync()

	cfg := config.MustLoadConfig[config.Auth](config.EnvConfig.Auth, config.EnvConfig.AuthYAMLPath)
	token.SetSecret(cfg.JWTSecret)
	token.SetExpiration(cfg.TokenTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 連線 PostgreSQL
	pool, err := database.NewDatabaseConnection(ctx, database.Connection{
		ConnectStr:    cfg.PostgreSQL.URL(),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	if err := userRepo.EnsureSchema(ctx); err != nil {
		logger.Log.Fatal("Failed to create users table", zap.Error(err))
	}

	authHandler := handlers.NewAuthHandler(app.NewAuthUseCase(userRepo))

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.AuthLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open access log", zap.Error(err))
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, authHandler)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down auth")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := r.Listen(":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media_pipeline/internal/converter/app"
	"media_pipeline/internal/converter/repository"
	"media_pipeline/internal/pipeline/infra"
	"media_pipeline/pkg/config"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"
	testtool "media_pipeline/pkg/test_tool"

	"go.uber.org/zap"
)

func main() {
	probe := flag.Bool("probe", false, "check the health service of a running converter and exit")
	flag.Parse()

	logger.Log = logger.Initialize(config.EnvConfig.Converter, config.EnvConfig.ConverterLogPath)
	defer logger.Log.Sync()

	cfg := config.MustLoadConfig[config.Converter](config.EnvConfig.Converter, config.EnvConfig.ConverterYAMLPath)

	if *probe {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := database.ProbeHealth(ctx, "127.0.0.1:"+cfg.HealthPort, app.ServiceName); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("SERVING")
		return
	}

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

	// 2. blob store
	stores, err := infra.OpenStores(ctx, cfg.Store)
	if err != nil {
		logger.Log.Fatal("Unable to connect to blob store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer stores.Close(context.Background())

	// 3. ledger
	db, err := database.NewPGConnection(ctx, database.Connection{
		ConnectStr:    cfg.PostgreSQL.DSN(),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to PostgreSQL", zap.Error(err))
	}
	defer database.ClosePG(db)

	ledger := repository.NewLedgerRepo(db)
	if err := ledger.AutoMigrate(); err != nil {
		logger.Log.Fatal("Failed to migrate ledger", zap.Error(err))
	}

	transformer, err := app.NewTransformer(cfg.Transform)
	if err != nil {
		logger.Log.Fatal("Invalid transform config", zap.Error(err))
	}

	queues := infra.QueueNames(cfg.Queues)
	svc := app.NewService(
		func(ctx context.Context) (database.QueueClient, error) {
			return infra.OpenQueue(ctx, cfg.RabbitMQ, cfg.Queues, cfg.Workers)
		},
		func(queue database.QueueClient) (*app.Worker, error) {
			return app.NewWorker(stores.Source, stores.Result, queue, ledger, transformer, queues.Notification), nil
		},
		queues.Job,
		health,
	)

	// 4. 連線 RabbitMQ 並開始消費, 重試用盡就結束
	if err := svc.Run(ctx); err != nil {
		logger.Log.Fatal("converter stopped with error", zap.Error(err))
	}
}

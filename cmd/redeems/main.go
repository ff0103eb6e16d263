// Job - Обработка списаний баллов из RabbitMQ
package main

import (
	"context"
	"os/signal"
	"syscall"

	app "github.com/glkeru/loyalty/rewards/internal/app"
	"github.com/glkeru/loyalty/rewards/internal/config"
	rabbit "github.com/glkeru/loyalty/rewards/internal/external/rabbitmq"
	otel "github.com/glkeru/loyalty/rewards/observability/otel"
	"go.uber.org/zap"
)

func main() {
	// config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	// log
	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer(ctx, cfg.Otel, logger)
	if err != nil {
		logger.Fatal("Tracer", zap.Error(err))
	}
	defer shutdownTracer()

	// rabbitmq
	reader, err := rabbit.NewRabbitConsumer(cfg.Rabbit)
	if err != nil {
		logger.Fatal("RabbitMQ", zap.Error(err))
	}
	defer reader.Close()

	rewards, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Build", zap.Error(err))
	}
	defer rewards.Close()

	// workers
	logger.Info("Redeem workers started", zap.Int("workers", cfg.Rabbit.Workers))
	rabbit.NewRedeemHandler(logger, rewards.Identity, rewards.APIKeys).Workers(ctx, cfg.Rabbit.Workers, reader.Msg, reader)
}

// Job - начисления из Kafka
// Опрос топика issuance -> начисление внешнему пользователю бренда (eventId - ключ идемпотентности)
package main

import (
	"context"
	"os/signal"
	"syscall"

	app "github.com/glkeru/loyalty/rewards/internal/app"
	"github.com/glkeru/loyalty/rewards/internal/config"
	kafka "github.com/glkeru/loyalty/rewards/internal/external/kafka"
	otel "github.com/glkeru/loyalty/rewards/observability/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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

	rewards, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Build", zap.Error(err))
	}
	defer rewards.Close()

	handler := kafka.NewIssuanceHandler(logger, rewards.Identity, rewards.APIKeys)

	// читатели одной группы, партиции делятся между ними
	workers := cfg.Kafka.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		reader, err := kafka.GetNewReader(cfg.Kafka)
		if err != nil {
			logger.Fatal("Kafka reader", zap.Error(err))
		}
		defer reader.CloseReader()
		g.Go(func() error {
			return handler.Consume(gctx, reader)
		})
	}
	logger.Info("Issuance consumer started", zap.String("topic", cfg.Kafka.Topic), zap.Int("workers", workers))

	if err = g.Wait(); err != nil {
		logger.Error("Issuance consumer stopped", zap.Error(err))
	}
}

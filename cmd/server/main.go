// HTTP API (панель управления и интеграции) и gRPC сервер балансов
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	grpcapi "github.com/glkeru/loyalty/rewards/internal/api/grpc"
	api "github.com/glkeru/loyalty/rewards/internal/api/http"
	app "github.com/glkeru/loyalty/rewards/internal/app"
	"github.com/glkeru/loyalty/rewards/internal/config"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	otel "github.com/glkeru/loyalty/rewards/observability/otel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
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

	// tracing
	shutdownTracer, err := otel.InitTracer(ctx, cfg.Otel, logger)
	if err != nil {
		logger.Fatal("Tracer", zap.Error(err))
	}
	defer shutdownTracer()

	// storage and services
	rewards, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Build", zap.Error(err))
	}
	defer rewards.Close()

	auth, err := services.NewIdentityProvider(cfg.Auth)
	if err != nil {
		logger.Fatal("Identity provider", zap.Error(err))
	}

	// api handlers
	h := api.NewHandler(logger, api.Services{
		Ledger:      rewards.Ledger,
		Redemptions: rewards.Redemptions,
		Fraud:       rewards.Fraud,
		Identity:    rewards.Identity,
		APIKeys:     rewards.APIKeys,
	}, auth, rewards.Store)
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(h, "rewards"),
		Addr:         ":" + cfg.HTTP.Port,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
	}

	// grpc
	lis, err := net.Listen("tcp", "0.0.0.0:"+cfg.GRPC.Port)
	if err != nil {
		logger.Fatal("gRPC listen", zap.Error(err))
	}
	grpcServer, health := grpcapi.NewServer(logger, grpcapi.NewPointsService(logger, rewards.Ledger, rewards.Identity), rewards.APIKeys)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server started", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server started", zap.String("port", cfg.GRPC.Port))
		return grpcServer.Serve(lis)
	})

	// shutdown
	g.Go(func() error {
		<-gctx.Done()
		health.Shutdown()
		timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(timeout)
		grpcServer.GracefulStop()
		return err
	})

	if err = g.Wait(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

package rewards

import (
	"context"
	"time"

	"github.com/glkeru/loyalty/rewards/internal/config"
	db "github.com/glkeru/loyalty/rewards/internal/db"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"go.uber.org/zap"
)

// Общая сборка хранилищ и сервисов для всех бинарников
type App struct {
	Store       interf.Storage
	Ledger      *services.LedgerService
	Redemptions *services.RedemptionService
	Fraud       *services.FraudService
	Identity    *services.IdentityService
	APIKeys     *services.APIKeyService

	closers []func()
}

func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{}
	ok := false
	// при ошибке закрываем то, что успели открыть
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	// database
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := db.NewSQLiteDB(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		app.Store = store
	default:
		store, err := db.NewPointsDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		app.Store = store
	}
	app.closers = append(app.closers, app.Store.Close)

	// cache
	var cache interf.CacheStorage
	if cfg.Cache.Enabled() {
		redis, err := db.NewCacheService(ctx, cfg.Cache)
		if err != nil {
			logger.Error("Cache is unavailable, balances are read from the ledger", zap.Error(err))
		} else {
			cache = redis
			app.closers = append(app.closers, func() { _ = redis.Close() })
		}
	}

	// флаги мошенничества: MongoDB, если задана
	var flags interf.FlagStorage = app.Store
	if cfg.Mongo.Enabled() {
		mongo, err := db.NewFlagsDB(ctx, cfg.Mongo)
		if err != nil {
			logger.Error("MongoDB is unavailable, fraud flags are stored in the ledger database", zap.Error(err))
		} else {
			flags = mongo
			app.closers = append(app.closers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mongo.Close(ctx)
			})
		}
	}

	// services
	app.Fraud = services.NewFraudService(logger, app.Store, flags, services.FraudConfig{
		WindowMinutes:        cfg.Fraud.WindowMinutes,
		MaxMintsPerWindow:    cfg.Fraud.MaxMintsPerWindow,
		LargeAmountThreshold: cfg.Fraud.LargeAmountThreshold,
	})
	app.Ledger = services.NewLedgerService(logger, app.Store, app.Store, cache, app.Fraud, services.LedgerOptions{
		MaxMetadataBytes: cfg.Ledger.MaxMetadataBytes,
		StrictBalance:    cfg.Ledger.StrictBalance,
	})
	app.Redemptions = services.NewRedemptionService(logger, app.Ledger, app.Store)
	app.Identity = services.NewIdentityService(logger, app.Store, app.Ledger, app.Redemptions)
	app.APIKeys = services.NewAPIKeyService(logger, app.Store)
	ok = true
	return app, nil
}

// Close закрывает соединения в обратном порядке
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

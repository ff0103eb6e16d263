package rewards

import (
	"context"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type FraudConfig struct {
	WindowMinutes        int
	MaxMintsPerWindow    int
	LargeAmountThreshold decimal.Decimal
}

func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		WindowMinutes:        60,
		MaxMintsPerWindow:    10,
		LargeAmountThreshold: decimal.NewFromInt(10000),
	}
}

// Проверки на мошенничество перед начислением. Только сигнализируют, начисление не блокируют
type FraudService struct {
	logger *zap.Logger
	ledger interf.LedgerStorage
	flags  interf.FlagStorage
	cfg    FraudConfig
	now    func() time.Time
}

func NewFraudService(logger *zap.Logger, ledger interf.LedgerStorage, flags interf.FlagStorage, cfg FraudConfig) *FraudService {
	return &FraudService{logger, ledger, flags, cfg, time.Now}
}

// RunChecks выполняет обе проверки параллельно. Ошибки логируются и не возвращаются
func (f *FraudService) RunChecks(ctx context.Context, brandID string, userID string, amount decimal.Decimal) model.FraudCheckResult {
	var result model.FraudCheckResult
	var g errgroup.Group
	g.Go(func() error {
		result.VelocityFlagged = f.checkVelocity(ctx, brandID, userID, amount)
		return nil
	})
	g.Go(func() error {
		result.LargeAmountFlagged = f.checkLargeAmount(ctx, brandID, userID, amount)
		return nil
	})
	_ = g.Wait()
	return result
}

// Частота начислений в скользящем окне
func (f *FraudService) checkVelocity(ctx context.Context, brandID string, userID string, amount decimal.Decimal) bool {
	window := time.Duration(f.cfg.WindowMinutes) * time.Minute
	count, err := f.ledger.CountMints(ctx, brandID, userID, f.now().Add(-window))
	if err != nil {
		f.logger.Error("Velocity check failed",
			zap.Error(err),
			zap.String("service", "FraudService"),
			zap.String("brand", brandID),
			zap.String("user", userID))
		return false
	}
	if count <= f.cfg.MaxMintsPerWindow {
		return false
	}
	f.writeFlag(ctx, model.FraudFlag{
		UserID:   userID,
		BrandID:  brandID,
		Severity: model.SeverityMedium,
		Reason:   model.FlagReasonVelocity,
		Details: map[string]any{
			"mintCount":     count,
			"windowMinutes": f.cfg.WindowMinutes,
			"limit":         f.cfg.MaxMintsPerWindow,
			"amount":        amount.String(),
			"brandId":       brandID,
		},
	})
	return true
}

// Крупное начисление
func (f *FraudService) checkLargeAmount(ctx context.Context, brandID string, userID string, amount decimal.Decimal) bool {
	if !amount.GreaterThan(f.cfg.LargeAmountThreshold) {
		return false
	}
	f.writeFlag(ctx, model.FraudFlag{
		UserID:   userID,
		BrandID:  brandID,
		Severity: model.SeverityHigh,
		Reason:   model.FlagReasonLargeAmount,
		Details: map[string]any{
			"amount":    amount.String(),
			"threshold": f.cfg.LargeAmountThreshold.String(),
			"brandId":   brandID,
		},
	})
	return true
}

func (f *FraudService) writeFlag(ctx context.Context, flag model.FraudFlag) {
	flag.Status = model.FlagPending
	created, err := f.flags.CreateFlag(ctx, flag)
	if err != nil {
		f.logger.Error("Fraud flag write failed",
			zap.Error(err),
			zap.String("service", "FraudService"),
			zap.String("reason", flag.Reason),
			zap.String("brand", flag.BrandID),
			zap.String("user", flag.UserID))
		return
	}
	fraudFlags.WithLabelValues(string(flag.Severity)).Inc()
	f.logger.Warn("Fraud flag raised",
		zap.String("flag", created.ID.String()),
		zap.String("severity", string(created.Severity)),
		zap.String("reason", created.Reason),
		zap.String("brand", created.BrandID),
		zap.String("user", created.UserID))
}

// Рассмотрение флага. Повторный вызов с тем же статусом ничего не меняет
func (f *FraudService) ReviewFlag(ctx context.Context, flagID uuid.UUID, reviewerID string, status model.FraudStatus) (model.FraudFlag, error) {
	if reviewerID == "" {
		return model.FraudFlag{}, model.NewValidationError("reviewerId", "is required")
	}
	if !status.Reviewed() {
		return model.FraudFlag{}, model.NewValidationError("status", "must be REVIEWED, DISMISSED or CONFIRMED")
	}
	flag, err := f.flags.GetFlag(ctx, flagID)
	if err != nil {
		return model.FraudFlag{}, err
	}
	if flag.Status == status {
		return flag, nil
	}
	return f.flags.UpdateFlagStatus(ctx, flagID, status, reviewerID, f.now().UTC())
}

func (f *FraudService) GetFlag(ctx context.Context, flagID uuid.UUID) (model.FraudFlag, error) {
	return f.flags.GetFlag(ctx, flagID)
}

func (f *FraudService) ListFlags(ctx context.Context, filter model.FlagFilter) ([]model.FraudFlag, error) {
	if filter.Status != "" && filter.Status != model.FlagPending && !filter.Status.Reviewed() {
		return nil, model.NewValidationError("status", "unknown flag status")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, model.NewValidationError("limit", "must not be negative")
	}
	return f.flags.ListFlags(ctx, filter)
}

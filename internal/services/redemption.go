package rewards

import (
	"context"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Списания по кампаниям: проверка, запись списания и проводки в одной транзакции
type RedemptionService struct {
	logger      *zap.Logger
	ledger      *LedgerService
	redemptions interf.RedemptionStorage
}

func NewRedemptionService(logger *zap.Logger, ledger *LedgerService, redemptions interf.RedemptionStorage) *RedemptionService {
	return &RedemptionService{logger, ledger, redemptions}
}

type RedemptionRequest struct {
	BrandID    string
	UserID     string
	PointsUsed decimal.Decimal
	CampaignID string
	Metadata   model.Metadata
	// оставить в pending до подтверждения (CompleteRedemption) или отмены
	Hold bool
}

func (s *RedemptionService) CreateRedemption(ctx context.Context, req RedemptionRequest) (redemption model.Redemption, err error) {
	ctx, span := s.ledger.tracer.Start(ctx, "redemption.Create", trace.WithAttributes(
		attribute.String("brand", req.BrandID),
		attribute.String("user", req.UserID)))
	defer func() {
		endSpan(span, err)
		observe("redeem", err)
	}()

	if err = s.ledger.validateAccount(req.BrandID, req.UserID); err != nil {
		return redemption, err
	}
	if err = s.ledger.validateAmount("pointsUsed", req.PointsUsed); err != nil {
		return redemption, err
	}
	if err = s.ledger.validateMetadata(req.Metadata); err != nil {
		return redemption, err
	}
	if err = s.ledger.checkBrand(ctx, req.BrandID); err != nil {
		return redemption, err
	}

	var committed model.BalanceSummary
	err = s.ledger.db.InAccountTx(ctx, req.BrandID, req.UserID, func(ctx context.Context, tx interf.AccountTx) error {
		summary, err := tx.Summary(ctx)
		if err != nil {
			return err
		}
		available := s.ledger.clamp(summary.Net())
		if available.LessThan(req.PointsUsed) {
			return &model.InsufficientBalanceError{Required: req.PointsUsed, Available: available}
		}
		created, err := tx.CreateRedemption(ctx, model.Redemption{
			CampaignID: req.CampaignID,
			PointsUsed: req.PointsUsed,
			Status:     model.RedemptionPending,
			Metadata:   req.Metadata,
		})
		if err != nil {
			return err
		}
		burnMeta := model.Metadata{"redemptionId": created.ID.String()}
		if req.CampaignID != "" {
			burnMeta["campaignId"] = req.CampaignID
		}
		_, err = tx.Append(ctx, model.LedgerEntry{
			Type:     model.BURN,
			Amount:   req.PointsUsed,
			Reason:   model.ReasonRedemption,
			Metadata: burnMeta,
		})
		if err != nil {
			return err
		}
		redemption = created
		if !req.Hold {
			redemption, err = tx.SetRedemptionStatus(ctx, created.ID, model.RedemptionCompleted)
			if err != nil {
				return err
			}
		}
		summary.Add(model.BURN, req.PointsUsed)
		committed = summary
		return nil
	})
	if err != nil {
		s.ledger.cacheDrop(ctx, req.BrandID, req.UserID)
		return model.Redemption{}, err
	}
	s.ledger.cacheWrite(ctx, req.BrandID, req.UserID, committed)
	pointsMoved.WithLabelValues(string(model.BURN)).Add(req.PointsUsed.InexactFloat64())
	s.logger.Info("Redemption created",
		zap.String("redemption", redemption.ID.String()),
		zap.String("brand", redemption.BrandID),
		zap.String("user", redemption.UserID),
		zap.String("status", string(redemption.Status)))
	return redemption, nil
}

// Подтверждение отложенного списания
func (s *RedemptionService) CompleteRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return s.transition(ctx, "redemption_complete", id, model.RedemptionCompleted)
}

// Отмена: только из pending, баллы возвращаются проводкой redemption_refund
func (s *RedemptionService) CancelRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return s.transition(ctx, "redemption_cancel", id, model.RedemptionCancelled)
}

func (s *RedemptionService) transition(ctx context.Context, op string, id uuid.UUID, target model.RedemptionStatus) (redemption model.Redemption, err error) {
	ctx, span := s.ledger.tracer.Start(ctx, "redemption."+op, trace.WithAttributes(attribute.String("redemption", id.String())))
	defer func() {
		endSpan(span, err)
		observe(op, err)
	}()

	current, err := s.redemptions.GetRedemption(ctx, id)
	if err != nil {
		return redemption, err
	}
	var committed *model.BalanceSummary
	err = s.ledger.db.InAccountTx(ctx, current.BrandID, current.UserID, func(ctx context.Context, tx interf.AccountTx) error {
		locked, err := tx.GetRedemption(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != model.RedemptionPending {
			return &model.InvalidStateError{
				Entity:    "redemption",
				ID:        id.String(),
				Current:   string(locked.Status),
				Attempted: string(target),
			}
		}
		if target == model.RedemptionCancelled {
			_, err = tx.Append(ctx, model.LedgerEntry{
				Type:     model.MINT,
				Amount:   locked.PointsUsed,
				Reason:   model.ReasonRedemptionRefund,
				Metadata: model.Metadata{"originalRedemptionId": id.String()},
			})
			if err != nil {
				return err
			}
		}
		redemption, err = tx.SetRedemptionStatus(ctx, id, target)
		if err != nil {
			return err
		}
		if target == model.RedemptionCancelled {
			summary, err := tx.Summary(ctx)
			if err != nil {
				return err
			}
			committed = &summary
		}
		return nil
	})
	if err != nil {
		s.ledger.cacheDrop(ctx, current.BrandID, current.UserID)
		return model.Redemption{}, err
	}
	if committed != nil {
		s.ledger.cacheWrite(ctx, current.BrandID, current.UserID, *committed)
	}
	if target == model.RedemptionCancelled {
		pointsMoved.WithLabelValues(string(model.MINT)).Add(redemption.PointsUsed.InexactFloat64())
	}
	s.logger.Info("Redemption status changed",
		zap.String("redemption", id.String()),
		zap.String("status", string(target)))
	return redemption, nil
}

func (s *RedemptionService) GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error) {
	return s.redemptions.GetRedemption(ctx, id)
}

func (s *RedemptionService) ListRedemptions(ctx context.Context, filter model.RedemptionFilter) ([]model.Redemption, error) {
	if filter.BrandID == "" {
		return nil, model.NewValidationError("brandId", "is required")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, model.NewValidationError("limit", "must not be negative")
	}
	if filter.Limit > MaxHistoryLimit {
		filter.Limit = MaxHistoryLimit
	}
	switch filter.Status {
	case "", model.RedemptionPending, model.RedemptionCompleted, model.RedemptionCancelled:
	default:
		return nil, model.NewValidationError("status", "unknown redemption status")
	}
	return s.redemptions.ListRedemptions(ctx, filter)
}

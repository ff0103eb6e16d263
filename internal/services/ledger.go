package rewards

import (
	"context"
	"errors"
	"fmt"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type LedgerOptions struct {
	MaxMetadataBytes int
	// отрицательный баланс - ошибка, а не ноль
	StrictBalance bool
}

// Начисление, списание и баланс баллов
type LedgerService struct {
	logger *zap.Logger
	db     interf.LedgerStorage
	brands interf.BrandStorage
	cache  interf.CacheStorage
	fraud  *FraudService
	opts   LedgerOptions
	tracer trace.Tracer
}

func NewLedgerService(logger *zap.Logger, db interf.LedgerStorage, brands interf.BrandStorage, cache interf.CacheStorage, fraud *FraudService, opts LedgerOptions) *LedgerService {
	if opts.MaxMetadataBytes <= 0 {
		opts.MaxMetadataBytes = model.DefaultMaxMetadataBytes
	}
	return &LedgerService{
		logger: logger,
		db:     db,
		brands: brands,
		cache:  cache,
		fraud:  fraud,
		opts:   opts,
		tracer: otel.Tracer("rewards"),
	}
}

type MintRequest struct {
	BrandID        string
	UserID         string
	Amount         decimal.Decimal
	Reason         string
	Metadata       model.Metadata
	IdempotencyKey string
}

type MintResult struct {
	Entry      model.LedgerEntry      `json:"entry"`
	NewBalance decimal.Decimal        `json:"newBalance"`
	Fraud      model.FraudCheckResult `json:"fraud"`
	// повтор по ключу идемпотентности, новая проводка не создана
	Replayed bool `json:"replayed"`
}

type BurnRequest struct {
	BrandID  string
	UserID   string
	Amount   decimal.Decimal
	Reason   string
	Metadata model.Metadata
}

type BurnResult struct {
	Entry      model.LedgerEntry `json:"entry"`
	NewBalance decimal.Decimal   `json:"newBalance"`
}

type HistoryRequest struct {
	BrandID string
	UserID  string
	Cursor  string
	Limit   int
	Type    model.EntryType
	Reason  string
}

func (s *LedgerService) validateAccount(brandID string, userID string) error {
	if brandID == "" {
		return model.NewValidationError("brandId", "is required")
	}
	if userID == "" {
		return model.NewValidationError("userId", "is required")
	}
	return nil
}

func (s *LedgerService) validateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return model.NewValidationError(field, "must be positive")
	}
	return nil
}

func (s *LedgerService) validateMetadata(meta model.Metadata) error {
	_, err := meta.Encode(s.opts.MaxMetadataBytes)
	return err
}

// бренд должен существовать
func (s *LedgerService) checkBrand(ctx context.Context, brandID string) error {
	if s.brands == nil {
		return nil
	}
	_, err := s.brands.GetBrand(ctx, brandID)
	return err
}

// Начисление баллов
func (s *LedgerService) MintPoints(ctx context.Context, req MintRequest) (result MintResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.MintPoints", trace.WithAttributes(
		attribute.String("brand", req.BrandID),
		attribute.String("user", req.UserID)))
	defer func() {
		endSpan(span, err)
		observe("mint", err)
	}()

	if err = s.validateAccount(req.BrandID, req.UserID); err != nil {
		return result, err
	}
	if err = s.validateAmount("amount", req.Amount); err != nil {
		return result, err
	}
	if err = s.validateMetadata(req.Metadata); err != nil {
		return result, err
	}
	if err = s.checkBrand(ctx, req.BrandID); err != nil {
		return result, err
	}

	// повторная доставка: возвращаем уже записанную проводку
	if req.IdempotencyKey != "" {
		existing, err := s.db.FindByIdempotencyKey(ctx, req.BrandID, req.IdempotencyKey)
		if err != nil {
			return result, err
		}
		if existing != nil {
			return s.replay(ctx, *existing, req)
		}
	}

	if s.fraud != nil {
		result.Fraud = s.fraud.RunChecks(ctx, req.BrandID, req.UserID, req.Amount)
	}

	var committed model.BalanceSummary
	err = s.db.InAccountTx(ctx, req.BrandID, req.UserID, func(ctx context.Context, tx interf.AccountTx) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Entry = *existing
				result.Replayed = true
			}
		}
		if !result.Replayed {
			entry, err := tx.Append(ctx, model.LedgerEntry{
				Type:           model.MINT,
				Amount:         req.Amount,
				Reason:         req.Reason,
				Metadata:       req.Metadata,
				IdempotencyKey: req.IdempotencyKey,
			})
			if err != nil {
				return err
			}
			result.Entry = entry
		}
		summary, err := tx.Summary(ctx)
		if err != nil {
			return err
		}
		result.NewBalance = s.clamp(summary.Net())
		committed = summary
		return nil
	})
	if err != nil {
		s.cacheDrop(ctx, req.BrandID, req.UserID)
		return MintResult{}, err
	}
	s.cacheWrite(ctx, req.BrandID, req.UserID, committed)
	if !result.Replayed {
		pointsMoved.WithLabelValues(string(model.MINT)).Add(req.Amount.InexactFloat64())
	}
	return result, nil
}

func (s *LedgerService) replay(ctx context.Context, existing model.LedgerEntry, req MintRequest) (MintResult, error) {
	if existing.UserID != req.UserID || existing.Type != model.MINT || !existing.Amount.Equal(req.Amount) {
		return MintResult{}, model.NewValidationError("idempotencyKey", "already used for a different entry")
	}
	balance, err := s.GetUserBalance(ctx, req.BrandID, req.UserID)
	if err != nil {
		return MintResult{}, err
	}
	return MintResult{Entry: existing, NewBalance: balance, Replayed: true}, nil
}

// Списание баллов. Достаточность проверяется под блокировкой счета
func (s *LedgerService) BurnPoints(ctx context.Context, req BurnRequest) (result BurnResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.BurnPoints", trace.WithAttributes(
		attribute.String("brand", req.BrandID),
		attribute.String("user", req.UserID)))
	defer func() {
		endSpan(span, err)
		observe("burn", err)
	}()

	if err = s.validateAccount(req.BrandID, req.UserID); err != nil {
		return result, err
	}
	if err = s.validateAmount("amount", req.Amount); err != nil {
		return result, err
	}
	if err = s.validateMetadata(req.Metadata); err != nil {
		return result, err
	}
	if err = s.checkBrand(ctx, req.BrandID); err != nil {
		return result, err
	}

	var committed model.BalanceSummary
	err = s.db.InAccountTx(ctx, req.BrandID, req.UserID, func(ctx context.Context, tx interf.AccountTx) error {
		summary, err := tx.Summary(ctx)
		if err != nil {
			return err
		}
		available := s.clamp(summary.Net())
		if available.LessThan(req.Amount) {
			return &model.InsufficientBalanceError{Required: req.Amount, Available: available}
		}
		entry, err := tx.Append(ctx, model.LedgerEntry{
			Type:     model.BURN,
			Amount:   req.Amount,
			Reason:   req.Reason,
			Metadata: req.Metadata,
		})
		if err != nil {
			return err
		}
		summary.Add(model.BURN, req.Amount)
		result = BurnResult{Entry: entry, NewBalance: s.clamp(summary.Net())}
		committed = summary
		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrInsufficientBalance) {
			s.cacheDrop(ctx, req.BrandID, req.UserID)
		}
		return BurnResult{}, err
	}
	s.cacheWrite(ctx, req.BrandID, req.UserID, committed)
	pointsMoved.WithLabelValues(string(model.BURN)).Add(req.Amount.InexactFloat64())
	return result, nil
}

// Баланс: max(0, начислено - списано)
func (s *LedgerService) GetUserBalance(ctx context.Context, brandID string, userID string) (decimal.Decimal, error) {
	if err := s.validateAccount(brandID, userID); err != nil {
		return decimal.Zero, err
	}
	if s.cache != nil {
		cached, err := s.cache.GetBalance(ctx, brandID, userID)
		if err == nil {
			return s.expose(brandID, userID, cached)
		}
		if !errors.Is(err, model.ErrCacheMiss) {
			s.logger.Warn("Cache read failed", zap.Error(err), zap.String("service", "GetUserBalance"))
		}
	}
	summary, err := s.db.Summary(ctx, brandID, userID)
	if err != nil {
		return decimal.Zero, err
	}
	net := summary.Net()
	if s.cache != nil {
		if err = s.cache.SetBalance(ctx, brandID, userID, summary); err != nil {
			s.logger.Warn("Cache write failed", zap.Error(err), zap.String("service", "GetUserBalance"))
		}
	}
	return s.expose(brandID, userID, net)
}

// Итоги без ограничения снизу, всегда из хранилища
func (s *LedgerService) GetBalanceSummary(ctx context.Context, brandID string, userID string) (model.BalanceSummary, error) {
	if err := s.validateAccount(brandID, userID); err != nil {
		return model.BalanceSummary{}, err
	}
	return s.db.Summary(ctx, brandID, userID)
}

// Итоги бренда: начислено, списано, подтвержденные обмены и остаток у пользователей
func (s *LedgerService) GetBrandSummary(ctx context.Context, brandID string) (model.BrandSummary, error) {
	if brandID == "" {
		return model.BrandSummary{}, model.NewValidationError("brandId", "is required")
	}
	var name string
	if s.brands != nil {
		brand, err := s.brands.GetBrand(ctx, brandID)
		if err != nil {
			return model.BrandSummary{}, err
		}
		name = brand.Name
	}
	summary, err := s.db.BrandSummary(ctx, brandID)
	if err != nil {
		return model.BrandSummary{}, err
	}
	summary.Name = name
	return summary, nil
}

func (s *LedgerService) HasSufficientBalance(ctx context.Context, brandID string, userID string, amount decimal.Decimal) (bool, error) {
	if err := s.validateAmount("amount", amount); err != nil {
		return false, err
	}
	balance, err := s.GetUserBalance(ctx, brandID, userID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}

// История по счету или по бренду (userID пустой)
func (s *LedgerService) ListLedgerHistory(ctx context.Context, req HistoryRequest) (model.HistoryPage, error) {
	if req.BrandID == "" {
		return model.HistoryPage{}, model.NewValidationError("brandId", "is required")
	}
	if req.Type != "" && !req.Type.Valid() {
		return model.HistoryPage{}, model.NewValidationError("type", "must be MINT or BURN")
	}
	limit := req.Limit
	if limit < 0 {
		return model.HistoryPage{}, model.NewValidationError("limit", "must not be negative")
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	before, err := model.ParseCursor(req.Cursor)
	if err != nil {
		return model.HistoryPage{}, err
	}
	entries, err := s.db.History(ctx, model.HistoryQuery{
		BrandID: req.BrandID,
		UserID:  req.UserID,
		Before:  before,
		Limit:   limit + 1,
		Type:    req.Type,
		Reason:  req.Reason,
	})
	if err != nil {
		return model.HistoryPage{}, err
	}
	page := model.HistoryPage{Items: entries}
	if len(entries) > limit {
		page.Items = entries[:limit]
		page.HasMore = true
		page.NextCursor = model.EncodeCursor(page.Items[limit-1].CreatedAt)
	}
	return page, nil
}

func (s *LedgerService) clamp(net decimal.Decimal) decimal.Decimal {
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// Отрицательный баланс - нарушение инварианта: логируем, считаем, отдаем ноль или ошибку
func (s *LedgerService) expose(brandID string, userID string, net decimal.Decimal) (decimal.Decimal, error) {
	if !net.IsNegative() {
		return net, nil
	}
	negativeBalances.Inc()
	s.logger.Error("Negative balance",
		zap.String("service", "GetUserBalance"),
		zap.String("brand", brandID),
		zap.String("user", userID),
		zap.String("net", net.String()))
	if s.opts.StrictBalance {
		return decimal.Zero, fmt.Errorf("%w: brand %s user %s net %s", model.ErrNegativeBalance, brandID, userID, net)
	}
	return decimal.Zero, nil
}

// запись в кэш после коммита
func (s *LedgerService) cacheWrite(ctx context.Context, brandID string, userID string, summary model.BalanceSummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetBalance(ctx, brandID, userID, summary); err != nil {
		s.logger.Warn("Cache write failed", zap.Error(err), zap.String("service", "cacheWrite"))
		s.cacheDrop(ctx, brandID, userID)
	}
}

func (s *LedgerService) cacheDrop(ctx context.Context, brandID string, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBalance(ctx, brandID, userID); err != nil {
		s.logger.Error("Cache invalidate failed", zap.Error(err), zap.String("service", "cacheDrop"))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

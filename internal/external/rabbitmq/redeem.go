package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SourceRabbit = "rabbit_redeems"

// Запрос списания из очереди redeems
type RedeemMessage struct {
	RequestID      string          `json:"requestId" validate:"required,max=255"`
	BrandID        string          `json:"brandId" validate:"required,max=255"`
	ExternalUserID string          `json:"externalUserId" validate:"required,max=255"`
	PointsUsed     decimal.Decimal `json:"pointsUsed"`
	CampaignID     string          `json:"campaignId" validate:"max=255"`
	Metadata       model.Metadata  `json:"metadata"`
}

type RedeemHandler struct {
	logger   *zap.Logger
	identity *services.IdentityService
	brands   *services.APIKeyService
	validate *validator.Validate
}

func NewRedeemHandler(logger *zap.Logger, identity *services.IdentityService, brands *services.APIKeyService) *RedeemHandler {
	return &RedeemHandler{
		logger:   logger,
		identity: identity,
		brands:   brands,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handle выполняет списание. Ответ формируется всегда, ошибка - только сбой инфраструктуры
func (h *RedeemHandler) Handle(ctx context.Context, body []byte) (RedeemConfirm, error) {
	msg := RedeemMessage{}
	if err := json.Unmarshal(body, &msg); err != nil {
		return RedeemConfirm{Error: "malformed message"}, nil
	}
	confirm := RedeemConfirm{RequestID: msg.RequestID}
	redemption, err := h.redeem(ctx, msg)
	if err != nil {
		if errors.Is(err, model.ErrInfrastructure) || !model.IsDomainError(err) {
			return confirm, err
		}
		confirm.Error = err.Error()
		return confirm, nil
	}
	confirm.RedemptionID = redemption.ID.String()
	confirm.Success = true
	return confirm, nil
}

func (h *RedeemHandler) redeem(ctx context.Context, msg RedeemMessage) (model.Redemption, error) {
	if err := h.validate.Struct(msg); err != nil {
		return model.Redemption{}, model.NewValidationError("body", err.Error())
	}
	brand, err := h.brands.GetBrand(ctx, msg.BrandID)
	if err != nil {
		return model.Redemption{}, err
	}
	if !brand.IsActive || brand.IsSuspended {
		return model.Redemption{}, fmt.Errorf("%w: brand %s is not active", model.ErrForbidden, brand.ID)
	}
	return h.identity.RedeemForExternalUser(ctx, model.IntegrationAuth{BrandID: brand.ID}, services.IntegrationRedeemRequest{
		ExternalUserID: msg.ExternalUserID,
		PointsUsed:     msg.PointsUsed,
		CampaignID:     msg.CampaignID,
		Metadata:       msg.Metadata.Merge(model.Metadata{"requestId": msg.RequestID}),
		Source:         SourceRabbit,
	})
}

type Confirmer interface {
	Processed(ctx context.Context, confirm RedeemConfirm) error
}

// Workers запускает count обработчиков очереди и ждет их завершения
func (h *RedeemHandler) Workers(ctx context.Context, count int, deliveries <-chan amqp.Delivery, confirmer Confirmer) {
	if count < 1 {
		count = 1
	}
	wg := &sync.WaitGroup{}
	wg.Add(count)
	for i := 0; i < count; i++ {
		go h.worker(ctx, wg, deliveries, confirmer)
	}
	wg.Wait()
}

// worker for rabbitmq messages
func (h *RedeemHandler) worker(ctx context.Context, wg *sync.WaitGroup, deliveries <-chan amqp.Delivery, confirmer Confirmer) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			confirm, err := h.Handle(ctx, msg.Body)
			if err != nil {
				// вернуть в очередь: транзакция откатилась
				h.logger.Error(err.Error(), zap.String("service", "RedeemHandler"), zap.String("request", confirm.RequestID))
				_ = msg.Nack(false, true)
				continue
			}
			if err = confirmer.Processed(ctx, confirm); err != nil {
				h.logger.Error(err.Error(), zap.String("service", "RedeemHandler"), zap.String("request", confirm.RequestID))
			}
			if !confirm.Success {
				h.logger.Warn("Redeem rejected", zap.String("request", confirm.RequestID), zap.String("error", confirm.Error))
			}
			_ = msg.Ack(false)
		}
	}
}

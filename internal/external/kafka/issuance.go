package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SourceKafka = "kafka_issuance"

// Событие начисления от бренда. eventId - ключ идемпотентности
type IssuanceMessage struct {
	EventID        string          `json:"eventId" validate:"required,max=255"`
	BrandID        string          `json:"brandId" validate:"required,max=255"`
	ExternalUserID string          `json:"externalUserId" validate:"required,max=255"`
	Points         decimal.Decimal `json:"points"`
	Reason         string          `json:"reason" validate:"max=255"`
	Metadata       model.Metadata  `json:"metadata"`
}

type IssuanceHandler struct {
	logger   *zap.Logger
	identity *services.IdentityService
	brands   *services.APIKeyService
	validate *validator.Validate
}

func NewIssuanceHandler(logger *zap.Logger, identity *services.IdentityService, brands *services.APIKeyService) *IssuanceHandler {
	return &IssuanceHandler{
		logger:   logger,
		identity: identity,
		brands:   brands,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handle разбирает и проводит событие. Ошибка домена - сообщение не повторяется
func (h *IssuanceHandler) Handle(ctx context.Context, body []byte) (services.IntegrationIssueResult, error) {
	msg := IssuanceMessage{}
	if err := json.Unmarshal(body, &msg); err != nil {
		return services.IntegrationIssueResult{}, model.NewValidationError("body", err.Error())
	}
	if err := h.validate.Struct(msg); err != nil {
		return services.IntegrationIssueResult{}, model.NewValidationError("body", err.Error())
	}
	brand, err := h.brands.GetBrand(ctx, msg.BrandID)
	if err != nil {
		return services.IntegrationIssueResult{}, err
	}
	if !brand.IsActive || brand.IsSuspended {
		return services.IntegrationIssueResult{}, fmt.Errorf("%w: brand %s is not active", model.ErrForbidden, brand.ID)
	}
	return h.identity.IssueToExternalUser(ctx, model.IntegrationAuth{BrandID: brand.ID}, services.IntegrationIssueRequest{
		ExternalUserID: msg.ExternalUserID,
		Amount:         msg.Points,
		Reason:         msg.Reason,
		Metadata:       msg.Metadata.Merge(model.Metadata{"eventId": msg.EventID}),
		IdempotencyKey: msg.EventID,
		Source:         SourceKafka,
	})
}

type MessageReader interface {
	GetNewMessage(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Consume обрабатывает сообщения по одному до отмены ctx.
// Сбой инфраструктуры останавливает чтение без коммита, сообщение придет повторно
func (h *IssuanceHandler) Consume(ctx context.Context, reader MessageReader) error {
	for {
		msg, err := reader.GetNewMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		res, err := h.Handle(ctx, msg.Value)
		switch {
		case err == nil:
			h.logger.Info("Issuance processed",
				zap.String("service", "IssuanceHandler"),
				zap.String("entry", res.Entry.ID.String()),
				zap.Bool("replayed", res.Replayed))
		case model.IsDomainError(err) && !errors.Is(err, model.ErrInfrastructure):
			h.logger.Error("Issuance rejected",
				zap.String("service", "IssuanceHandler"),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		default:
			return fmt.Errorf("issuance at offset %d: %w", msg.Offset, err)
		}
		if err = reader.Commit(ctx, msg); err != nil {
			return err
		}
	}
}

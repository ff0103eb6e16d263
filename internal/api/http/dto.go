package rewards

import (
	"reflect"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Запросы

type IssueRequest struct {
	UserID         string          `json:"userId" validate:"required,max=255"`
	Amount         decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Reason         string          `json:"reason" validate:"max=255"`
	Metadata       model.Metadata  `json:"metadata"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"max=255"`
}

type BurnRequest struct {
	UserID   string          `json:"userId" validate:"required,max=255"`
	Amount   decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Reason   string          `json:"reason" validate:"max=255"`
	Metadata model.Metadata  `json:"metadata"`
}

type RedeemRequest struct {
	UserID     string          `json:"userId" validate:"required,max=255"`
	PointsUsed decimal.Decimal `json:"pointsUsed" validate:"required,gt=0"`
	CampaignID string          `json:"campaignId" validate:"max=255"`
	Metadata   model.Metadata  `json:"metadata"`
	Hold       bool            `json:"hold"`
}

type ReviewRequest struct {
	Status model.FraudStatus `json:"status" validate:"required,oneof=REVIEWED DISMISSED CONFIRMED"`
}

type CreateKeyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type IntegrationIssueRequest struct {
	ExternalUserID string          `json:"externalUserId" validate:"required,max=255"`
	Points         decimal.Decimal `json:"points" validate:"required,gt=0"`
	Reason         string          `json:"reason" validate:"max=255"`
	Metadata       model.Metadata  `json:"metadata"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"max=255"`
}

type IntegrationRedeemRequest struct {
	ExternalUserID string          `json:"externalUserId" validate:"required,max=255"`
	PointsUsed     decimal.Decimal `json:"pointsUsed" validate:"required,gt=0"`
	CampaignID     string          `json:"campaignId" validate:"max=255"`
	Metadata       model.Metadata  `json:"metadata"`
}

// Ответы

type BalanceResponse struct {
	BrandID string          `json:"brandId"`
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type CreateKeyResponse struct {
	Key    model.BrandAPIKey `json:"key"`
	APIKey string            `json:"apiKey"`
}

type WhoamiResponse struct {
	BrandID  string `json:"brandId"`
	APIKeyID string `json:"apiKeyId"`
	Status   string `json:"status"`
}

type IntegrationIssueResponse struct {
	Status         string          `json:"status"`
	BrandID        string          `json:"brandId"`
	UserID         string          `json:"userId"`
	ExternalUserID string          `json:"externalUserId"`
	PointsIssued   decimal.Decimal `json:"pointsIssued"`
	NewBalance     decimal.Decimal `json:"newBalance"`
	LedgerEntryID  string          `json:"ledgerEntryId"`
	Replayed       bool            `json:"replayed"`
}

type IntegrationBalanceResponse struct {
	Status         string          `json:"status"`
	BrandID        string          `json:"brandId"`
	ExternalUserID string          `json:"externalUserId"`
	Balance        decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error     string           `json:"error"`
	Code      string           `json:"code"`
	Field     string           `json:"field,omitempty"`
	Required  *decimal.Decimal `json:"required,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
	Current   string           `json:"current,omitempty"`
	Attempted string           `json:"attempted,omitempty"`
}

// Для decimal проверяется только знак: gt=0 и required работают с d.Sign()
// без перевода во float64, где малые значения обращаются в ноль, а большие в +Inf
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

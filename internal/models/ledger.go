package rewards

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Тип проводки
type EntryType string

const (
	MINT EntryType = "MINT"
	BURN EntryType = "BURN"
)

func (t EntryType) Valid() bool {
	return t == MINT || t == BURN
}

const (
	ReasonRedemption       = "redemption"
	ReasonRedemptionRefund = "redemption_refund"
	ReasonIntegrationIssue = "integration_issue"
)

// Проводка в журнале баллов. Не изменяется после записи
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	BrandID        string          `json:"brandId"`
	UserID         string          `json:"userId"`
	Type           EntryType       `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason,omitempty"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Итоги по счету без ограничения снизу
type BalanceSummary struct {
	Minted decimal.Decimal `json:"minted"`
	Burned decimal.Decimal `json:"burned"`
}

func (b BalanceSummary) Net() decimal.Decimal {
	return b.Minted.Sub(b.Burned)
}

// Итоги по бренду целиком
type BrandSummary struct {
	BrandID string `json:"brandId"`
	Name    string `json:"name"`
	// пользователи, у которых есть хотя бы одна проводка
	Accounts            int             `json:"accounts"`
	TotalPointsIssued   decimal.Decimal `json:"totalPointsIssued"`
	TotalPointsBurned   decimal.Decimal `json:"totalPointsBurned"`
	TotalPointsRedeemed decimal.Decimal `json:"totalPointsRedeemed"`
	OutstandingPoints   decimal.Decimal `json:"outstandingPoints"`
}

// Оборот счета: сумма всех проводок, растет с каждой записью
func (b BalanceSummary) Volume() decimal.Decimal {
	return b.Minted.Add(b.Burned)
}

func (b *BalanceSummary) Add(t EntryType, amount decimal.Decimal) {
	switch t {
	case MINT:
		b.Minted = b.Minted.Add(amount)
	case BURN:
		b.Burned = b.Burned.Add(amount)
	}
}

func (b BalanceSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Minted decimal.Decimal `json:"minted"`
		Burned decimal.Decimal `json:"burned"`
		Net    decimal.Decimal `json:"net"`
	}{b.Minted, b.Burned, b.Net()})
}

// Параметры выборки истории. Before - курсор (createdAt последней записи предыдущей страницы)
type HistoryQuery struct {
	BrandID string
	UserID  string
	Before  time.Time
	Limit   int
	Type    EntryType
	Reason  string
}

type HistoryPage struct {
	Items      []LedgerEntry `json:"items"`
	HasMore    bool          `json:"hasMore"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func EncodeCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, cursor)
	if err != nil {
		return time.Time{}, NewValidationError("cursor", "must be an RFC3339 timestamp")
	}
	return t, nil
}

package rewards

import (
	"time"

	"github.com/google/uuid"
)

type FraudSeverity string

const (
	SeverityLow    FraudSeverity = "LOW"
	SeverityMedium FraudSeverity = "MEDIUM"
	SeverityHigh   FraudSeverity = "HIGH"
)

type FraudStatus string

const (
	FlagPending   FraudStatus = "PENDING"
	FlagReviewed  FraudStatus = "REVIEWED"
	FlagDismissed FraudStatus = "DISMISSED"
	FlagConfirmed FraudStatus = "CONFIRMED"
)

// Статусы, в которые флаг переводит проверяющий
func (s FraudStatus) Reviewed() bool {
	return s == FlagReviewed || s == FlagDismissed || s == FlagConfirmed
}

const (
	FlagReasonVelocity    = "velocity_limit_exceeded"
	FlagReasonLargeAmount = "large_amount"
)

// Подозрительная операция. На журнал не влияет
type FraudFlag struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"userId"`
	BrandID    string         `json:"brandId,omitempty"`
	Severity   FraudSeverity  `json:"severity"`
	Reason     string         `json:"reason"`
	Details    map[string]any `json:"details,omitempty"`
	Status     FraudStatus    `json:"status"`
	ReviewedBy string         `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time     `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type FlagFilter struct {
	BrandID string
	UserID  string
	Status  FraudStatus
	Limit   int
	Offset  int
}

// Результат проверок перед начислением
type FraudCheckResult struct {
	VelocityFlagged    bool `json:"velocityFlagged"`
	LargeAmountFlagged bool `json:"largeAmountFlagged"`
}

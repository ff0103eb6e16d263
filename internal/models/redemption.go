package rewards

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Списание баллов по кампании
type Redemption struct {
	ID         uuid.UUID        `json:"id"`
	BrandID    string           `json:"brandId"`
	UserID     string           `json:"userId"`
	CampaignID string           `json:"campaignId,omitempty"`
	PointsUsed decimal.Decimal  `json:"pointsUsed"`
	Status     RedemptionStatus `json:"status"`
	Metadata   Metadata         `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type RedemptionFilter struct {
	BrandID string
	UserID  string
	Status  RedemptionStatus
	Limit   int
	Offset  int
}

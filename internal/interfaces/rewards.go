package rewards

import (
	"context"
	"net/http"
	"time"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=./../services/mock_rewards_test.go -package=rewards . LedgerStorage,FlagStorage,CacheStorage

// Журнал баллов
type LedgerStorage interface {
	Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error)
	Summary(ctx context.Context, brandID string, userID string) (model.BalanceSummary, error)
	// Начислено, списано и подтвержденные обмены по всему бренду
	BrandSummary(ctx context.Context, brandID string) (model.BrandSummary, error)
	CountMints(ctx context.Context, brandID string, userID string, since time.Time) (int, error)
	History(ctx context.Context, query model.HistoryQuery) ([]model.LedgerEntry, error)
	FindByIdempotencyKey(ctx context.Context, brandID string, key string) (*model.LedgerEntry, error)
	// InAccountTx выполняет fn в одной транзакции с блокировкой счета (brandID, userID)
	InAccountTx(ctx context.Context, brandID string, userID string, fn func(ctx context.Context, tx AccountTx) error) error
}

// Операции внутри заблокированного счета
type AccountTx interface {
	Append(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error)
	Summary(ctx context.Context) (model.BalanceSummary, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.LedgerEntry, error)
	CreateRedemption(ctx context.Context, redemption model.Redemption) (model.Redemption, error)
	GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error)
	SetRedemptionStatus(ctx context.Context, id uuid.UUID, status model.RedemptionStatus) (model.Redemption, error)
}

type RedemptionStorage interface {
	GetRedemption(ctx context.Context, id uuid.UUID) (model.Redemption, error)
	ListRedemptions(ctx context.Context, filter model.RedemptionFilter) ([]model.Redemption, error)
}

type FlagStorage interface {
	CreateFlag(ctx context.Context, flag model.FraudFlag) (model.FraudFlag, error)
	GetFlag(ctx context.Context, id uuid.UUID) (model.FraudFlag, error)
	ListFlags(ctx context.Context, filter model.FlagFilter) ([]model.FraudFlag, error)
	UpdateFlagStatus(ctx context.Context, id uuid.UUID, status model.FraudStatus, reviewer string, at time.Time) (model.FraudFlag, error)
}

type IdentityStorage interface {
	FindOrCreateExternalUser(ctx context.Context, brandID string, externalUserID string) (model.ExternalUser, error)
	// nil, nil если пользователь не найден
	FindExternalUser(ctx context.Context, brandID string, externalUserID string) (*model.ExternalUser, error)
}

type BrandStorage interface {
	CreateBrand(ctx context.Context, brand model.Brand) (model.Brand, error)
	GetBrand(ctx context.Context, id string) (model.Brand, error)
	SetBrandStatus(ctx context.Context, id string, active bool, suspended bool) error
	CreateAPIKey(ctx context.Context, key model.BrandAPIKey) (model.BrandAPIKey, error)
	GetAPIKeyByHash(ctx context.Context, hash string) (model.BrandAPIKey, error)
	ListAPIKeys(ctx context.Context, brandID string) ([]model.BrandAPIKey, error)
	DisableAPIKey(ctx context.Context, brandID string, id uuid.UUID) error
	TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Хранилище целиком (Postgres или SQLite)
type Storage interface {
	LedgerStorage
	RedemptionStorage
	FlagStorage
	IdentityStorage
	BrandStorage
	Ping(ctx context.Context) error
	Close()
}

// Кэш балансов. GetBalance возвращает model.ErrCacheMiss, если значения нет.
// SetBalance не перезаписывает значение с большим оборотом (Minted + Burned)
type CacheStorage interface {
	GetBalance(ctx context.Context, brandID string, userID string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, brandID string, userID string, summary model.BalanceSummary) error
	InvalidateBalance(ctx context.Context, brandID string, userID string) error
}

// Определение вызывающего пользователя панели управления
type IdentityProvider interface {
	ResolveCallerIdentity(r *http.Request) (model.Identity, error)
}

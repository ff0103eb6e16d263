package rewards

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Brand struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"isActive"`
	IsSuspended bool      `json:"isSuspended"`
	CreatedAt   time.Time `json:"createdAt"`
}

// API ключ бренда. Хранится только хэш, сам ключ отдается один раз
type BrandAPIKey struct {
	ID         uuid.UUID  `json:"id"`
	BrandID    string     `json:"brandId"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// Пользователь интеграции: внешний ID в рамках бренда
type ExternalUser struct {
	ID             string    `json:"id"`
	BrandID        string    `json:"brandId"`
	ExternalUserID string    `json:"externalUserId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Вызывающий пользователь панели управления
type Identity struct {
	UserID        string `json:"userId"`
	PlatformAdmin bool   `json:"platformAdmin"`
	// бренды, с которыми пользователь может работать
	Brands []string `json:"brands,omitempty"`
}

// Администратор платформы видит все бренды
func (i Identity) CanAccessBrand(brandID string) bool {
	if i.PlatformAdmin {
		return true
	}
	return slices.Contains(i.Brands, brandID)
}

// Результат проверки API ключа
type IntegrationAuth struct {
	BrandID  string    `json:"brandId"`
	APIKeyID uuid.UUID `json:"apiKeyId"`
}

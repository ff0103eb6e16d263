package rewards

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const APIKeyPrefix = "rk_"

// Бренды и их API ключи
type APIKeyService struct {
	logger *zap.Logger
	brands interf.BrandStorage
	now    func() time.Time
}

func NewAPIKeyService(logger *zap.Logger, brands interf.BrandStorage) *APIKeyService {
	return &APIKeyService{logger, brands, time.Now}
}

func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *APIKeyService) CreateBrand(ctx context.Context, id string, name string) (model.Brand, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Brand{}, model.NewValidationError("brandId", "is required")
	}
	if name == "" {
		name = id
	}
	return s.brands.CreateBrand(ctx, model.Brand{ID: id, Name: name, IsActive: true})
}

func (s *APIKeyService) GetBrand(ctx context.Context, id string) (model.Brand, error) {
	return s.brands.GetBrand(ctx, id)
}

func (s *APIKeyService) SetBrandStatus(ctx context.Context, id string, active bool, suspended bool) error {
	return s.brands.SetBrandStatus(ctx, id, active, suspended)
}

// CreateKey возвращает ключ в открытом виде. Повторно получить его нельзя
func (s *APIKeyService) CreateKey(ctx context.Context, brandID string, name string) (model.BrandAPIKey, string, error) {
	if brandID == "" {
		return model.BrandAPIKey{}, "", model.NewValidationError("brandId", "is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.BrandAPIKey{}, "", model.NewValidationError("name", "is required")
	}
	if _, err := s.brands.GetBrand(ctx, brandID); err != nil {
		return model.BrandAPIKey{}, "", err
	}
	raw, err := generateAPIKey()
	if err != nil {
		return model.BrandAPIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	key, err := s.brands.CreateAPIKey(ctx, model.BrandAPIKey{
		BrandID:  brandID,
		Name:     name,
		KeyHash:  HashAPIKey(raw),
		IsActive: true,
	})
	if err != nil {
		return model.BrandAPIKey{}, "", err
	}
	s.logger.Info("API key created",
		zap.String("brand", brandID),
		zap.String("key", key.ID.String()),
		zap.String("name", name))
	return key, raw, nil
}

func (s *APIKeyService) ListKeys(ctx context.Context, brandID string) ([]model.BrandAPIKey, error) {
	if brandID == "" {
		return nil, model.NewValidationError("brandId", "is required")
	}
	return s.brands.ListAPIKeys(ctx, brandID)
}

func (s *APIKeyService) DisableKey(ctx context.Context, brandID string, keyID uuid.UUID) error {
	if brandID == "" {
		return model.NewValidationError("brandId", "is required")
	}
	err := s.brands.DisableAPIKey(ctx, brandID, keyID)
	if err != nil {
		return err
	}
	s.logger.Info("API key disabled", zap.String("brand", brandID), zap.String("key", keyID.String()))
	return nil
}

// Verify проверяет ключ и статус бренда
func (s *APIKeyService) Verify(ctx context.Context, raw string) (model.IntegrationAuth, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, APIKeyPrefix) {
		return model.IntegrationAuth{}, fmt.Errorf("%w: malformed api key", model.ErrUnauthorized)
	}
	key, err := s.brands.GetAPIKeyByHash(ctx, HashAPIKey(raw))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.IntegrationAuth{}, fmt.Errorf("%w: unknown api key", model.ErrUnauthorized)
		}
		return model.IntegrationAuth{}, err
	}
	if !key.IsActive {
		return model.IntegrationAuth{}, fmt.Errorf("%w: api key is disabled", model.ErrUnauthorized)
	}
	brand, err := s.brands.GetBrand(ctx, key.BrandID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.IntegrationAuth{}, fmt.Errorf("%w: brand %s", model.ErrForbidden, key.BrandID)
		}
		return model.IntegrationAuth{}, err
	}
	if !brand.IsActive || brand.IsSuspended {
		return model.IntegrationAuth{}, fmt.Errorf("%w: brand %s is not active", model.ErrForbidden, brand.ID)
	}

	// время использования - без ожидания
	go func(id uuid.UUID, at time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.brands.TouchAPIKey(ctx, id, at); err != nil {
			s.logger.Error("Touch api key", zap.Error(err), zap.String("service", "APIKeyService"))
		}
	}(key.ID, s.now().UTC())

	return model.IntegrationAuth{BrandID: key.BrandID, APIKeyID: key.ID}, nil
}

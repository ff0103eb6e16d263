package rewards

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/glkeru/loyalty/rewards/internal/config"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SourceAPIIntegration = "api_integration"

// Внешние пользователи брендов и операции интеграций от их имени
type IdentityService struct {
	logger      *zap.Logger
	users       interf.IdentityStorage
	ledger      *LedgerService
	redemptions *RedemptionService
}

func NewIdentityService(logger *zap.Logger, users interf.IdentityStorage, ledger *LedgerService, redemptions *RedemptionService) *IdentityService {
	return &IdentityService{logger, users, ledger, redemptions}
}

// ResolveExternalUser находит или создает пользователя. Конкурентные вызовы получают один ID
func (s *IdentityService) ResolveExternalUser(ctx context.Context, brandID string, externalUserID string) (model.ExternalUser, error) {
	if brandID == "" {
		return model.ExternalUser{}, model.NewValidationError("brandId", "is required")
	}
	externalUserID = strings.TrimSpace(externalUserID)
	if externalUserID == "" {
		return model.ExternalUser{}, model.NewValidationError("externalUserId", "is required")
	}
	return s.users.FindOrCreateExternalUser(ctx, brandID, externalUserID)
}

func (s *IdentityService) FindExternalUser(ctx context.Context, brandID string, externalUserID string) (*model.ExternalUser, error) {
	if brandID == "" {
		return nil, model.NewValidationError("brandId", "is required")
	}
	externalUserID = strings.TrimSpace(externalUserID)
	if externalUserID == "" {
		return nil, model.NewValidationError("externalUserId", "is required")
	}
	return s.users.FindExternalUser(ctx, brandID, externalUserID)
}

type IntegrationIssueRequest struct {
	ExternalUserID string
	Amount         decimal.Decimal
	Reason         string
	Metadata       model.Metadata
	IdempotencyKey string
	// по умолчанию api_integration
	Source string
}

type IntegrationIssueResult struct {
	MintResult
	User model.ExternalUser `json:"user"`
}

// Начисление от интеграции
func (s *IdentityService) IssueToExternalUser(ctx context.Context, auth model.IntegrationAuth, req IntegrationIssueRequest) (IntegrationIssueResult, error) {
	user, err := s.ResolveExternalUser(ctx, auth.BrandID, req.ExternalUserID)
	if err != nil {
		return IntegrationIssueResult{}, err
	}
	reason := req.Reason
	if reason == "" {
		reason = model.ReasonIntegrationIssue
	}
	source := req.Source
	if source == "" {
		source = SourceAPIIntegration
	}
	meta := req.Metadata.Merge(integrationMeta(auth, req.ExternalUserID, source))
	result, err := s.ledger.MintPoints(ctx, MintRequest{
		BrandID:        auth.BrandID,
		UserID:         user.ID,
		Amount:         req.Amount,
		Reason:         reason,
		Metadata:       meta,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return IntegrationIssueResult{}, err
	}
	return IntegrationIssueResult{MintResult: result, User: user}, nil
}

// Баланс внешнего пользователя. Неизвестный пользователь - ноль, без создания
func (s *IdentityService) IntegrationBalance(ctx context.Context, auth model.IntegrationAuth, externalUserID string) (decimal.Decimal, error) {
	user, err := s.FindExternalUser(ctx, auth.BrandID, externalUserID)
	if err != nil {
		return decimal.Zero, err
	}
	if user == nil {
		return decimal.Zero, nil
	}
	return s.ledger.GetUserBalance(ctx, auth.BrandID, user.ID)
}

type IntegrationRedeemRequest struct {
	ExternalUserID string
	PointsUsed     decimal.Decimal
	CampaignID     string
	Metadata       model.Metadata
	Source         string
}

// Списание от интеграции
func (s *IdentityService) RedeemForExternalUser(ctx context.Context, auth model.IntegrationAuth, req IntegrationRedeemRequest) (model.Redemption, error) {
	user, err := s.ResolveExternalUser(ctx, auth.BrandID, req.ExternalUserID)
	if err != nil {
		return model.Redemption{}, err
	}
	source := req.Source
	if source == "" {
		source = SourceAPIIntegration
	}
	meta := req.Metadata.Merge(integrationMeta(auth, req.ExternalUserID, source))
	return s.redemptions.CreateRedemption(ctx, RedemptionRequest{
		BrandID:    auth.BrandID,
		UserID:     user.ID,
		PointsUsed: req.PointsUsed,
		CampaignID: req.CampaignID,
		Metadata:   meta,
	})
}

// служебные ключи перекрывают ключи вызывающего
func integrationMeta(auth model.IntegrationAuth, externalUserID string, source string) model.Metadata {
	meta := model.Metadata{
		"externalUserId": externalUserID,
		"source":         source,
	}
	if auth.APIKeyID != uuid.Nil {
		meta["apiKeyId"] = auth.APIKeyID.String()
	}
	return meta
}

// NewIdentityProvider выбирает провайдера по режиму из конфигурации
func NewIdentityProvider(cfg config.Auth) (interf.IdentityProvider, error) {
	switch cfg.Mode {
	case config.AuthJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("env AUTH_JWT_SECRET is not set")
		}
		return &JWTProvider{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer}, nil
	case config.AuthStatic:
		if cfg.DevUserID == "" {
			return nil, fmt.Errorf("env AUTH_DEV_USER is not set")
		}
		return &StaticProvider{identity: model.Identity{UserID: cfg.DevUserID, PlatformAdmin: cfg.DevAdmin, Brands: cfg.DevBrands}}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// HS256 bearer токен: sub - пользователь, admin - администратор платформы, brands - доступные бренды
type JWTProvider struct {
	secret []byte
	issuer string
}

type callerClaims struct {
	Admin  bool     `json:"admin,omitempty"`
	Brands []string `json:"brands,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTProvider(secret string, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer}
}

func (p *JWTProvider) ResolveCallerIdentity(r *http.Request) (model.Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: bearer token is missing", model.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	claims := &callerClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", model.ErrUnauthorized)
	}
	return model.Identity{UserID: claims.Subject, PlatformAdmin: claims.Admin, Brands: claims.Brands}, nil
}

// Sign выпускает токен (CLI и тесты)
func (p *JWTProvider) Sign(identity model.Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = identity.UserID
	if p.issuer != "" {
		claims.Issuer = p.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, callerClaims{Admin: identity.PlatformAdmin, Brands: identity.Brands, RegisteredClaims: claims})
	return token.SignedString(p.secret)
}

// Фиксированный пользователь для разработки
type StaticProvider struct {
	identity model.Identity
}

func NewStaticProvider(identity model.Identity) *StaticProvider {
	return &StaticProvider{identity}
}

func (p *StaticProvider) ResolveCallerIdentity(r *http.Request) (model.Identity, error) {
	if p.identity.UserID == "" {
		return model.Identity{}, errors.New("static identity is not configured")
	}
	return p.identity, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

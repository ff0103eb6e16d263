package grpc

import (
	context "context"
	"errors"
	"strings"
	"time"

	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	status "google.golang.org/grpc/status"
)

type PointsService struct {
	logger   *zap.Logger
	ledger   *services.LedgerService
	identity *services.IdentityService
	UnimplementedPointsServer
}

func NewPointsService(logger *zap.Logger, ledger *services.LedgerService, identity *services.IdentityService) *PointsService {
	return &PointsService{logger: logger, ledger: ledger, identity: identity}
}

// NewServer собирает gRPC сервер: rewards.Points под API ключом и grpc.health.v1
func NewServer(logger *zap.Logger, points *PointsService, keys *services.APIKeyService, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.UnaryInterceptor(APIKeyInterceptor(keys)))
	server := grpc.NewServer(opts...)
	RegisterPointsServer(server, points)

	hs := health.NewServer()
	hs.SetServingStatus("rewards.Points", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}

// Баланс
func (p *PointsService) GetBalance(ctx context.Context, in *BalanceRequest) (*BalanceResponse, error) {
	auth := AuthFromContext(ctx)
	userID, err := p.resolveUser(ctx, auth, in.UserID, in.ExternalUserID)
	if err != nil {
		return nil, p.status("GetBalance", err)
	}
	resp := &BalanceResponse{BrandID: auth.BrandID, UserID: userID, Balance: "0"}
	if userID == "" {
		return resp, nil
	}
	balance, err := p.ledger.GetUserBalance(ctx, auth.BrandID, userID)
	if err != nil {
		return nil, p.status("GetBalance", err)
	}
	resp.Balance = balance.String()
	return resp, nil
}

// История проводок
func (p *PointsService) GetLedger(ctx context.Context, in *LedgerRequest) (*LedgerResponse, error) {
	auth := AuthFromContext(ctx)
	userID, err := p.resolveUser(ctx, auth, in.UserID, in.ExternalUserID)
	if err != nil {
		return nil, p.status("GetLedger", err)
	}
	if userID == "" {
		return &LedgerResponse{Items: []*EntryMessage{}}, nil
	}
	page, err := p.ledger.ListLedgerHistory(ctx, services.HistoryRequest{
		BrandID: auth.BrandID,
		UserID:  userID,
		Cursor:  in.Cursor,
		Limit:   int(in.Limit),
		Type:    model.EntryType(in.Type),
	})
	if err != nil {
		return nil, p.status("GetLedger", err)
	}
	resp := make([]*EntryMessage, len(page.Items))
	for i, v := range page.Items {
		resp[i] = &EntryMessage{
			ID:             v.ID.String(),
			Type:           string(v.Type),
			Amount:         v.Amount.String(),
			Reason:         v.Reason,
			IdempotencyKey: v.IdempotencyKey,
			CreatedAt:      v.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return &LedgerResponse{Items: resp, HasMore: page.HasMore, NextCursor: page.NextCursor}, nil
}

// внутренний ID или внешний; неизвестный внешний пользователь - пустая строка
func (p *PointsService) resolveUser(ctx context.Context, auth model.IntegrationAuth, userID string, externalUserID string) (string, error) {
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID, nil
	}
	user, err := p.identity.FindExternalUser(ctx, auth.BrandID, externalUserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.ID, nil
}

func (p *PointsService) status(method string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, model.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, model.ErrInsufficientBalance), errors.Is(err, model.ErrInvalidState):
		code = codes.FailedPrecondition
	case errors.Is(err, model.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, model.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, model.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, model.ErrInfrastructure):
		code = codes.Unavailable
	}
	if code == codes.Internal || code == codes.Unavailable {
		p.logger.Error(err.Error(), zap.String("service", "PointsService"), zap.String("method", method))
	}
	return status.Error(code, err.Error())
}

type authKey struct{}

func AuthFromContext(ctx context.Context) model.IntegrationAuth {
	auth, _ := ctx.Value(authKey{}).(model.IntegrationAuth)
	return auth
}

// APIKeyInterceptor проверяет x-api-key (или authorization: Bearer rk_...). Health без ключа
func APIKeyInterceptor(keys *services.APIKeyService) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		raw := first(md.Get("x-api-key"))
		if raw == "" {
			if token, ok := strings.CutPrefix(first(md.Get("authorization")), "Bearer "); ok {
				raw = token
			}
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "api key is required")
		}
		auth, err := keys.Verify(ctx, raw)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrUnauthorized):
				return nil, status.Error(codes.Unauthenticated, "invalid api key")
			case errors.Is(err, model.ErrForbidden):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			}
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return handler(context.WithValue(ctx, authKey{}, auth), req)
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

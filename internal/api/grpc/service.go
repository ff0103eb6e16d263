package grpc

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

const (
	Points_GetBalance_FullMethodName = "/rewards.Points/GetBalance"
	Points_GetLedger_FullMethodName  = "/rewards.Points/GetLedger"
)

// Сообщения

type BalanceRequest struct {
	UserID         string `json:"userId,omitempty"`
	ExternalUserID string `json:"externalUserId,omitempty"`
}

type BalanceResponse struct {
	BrandID string `json:"brandId"`
	UserID  string `json:"userId,omitempty"`
	Balance string `json:"balance"`
}

type LedgerRequest struct {
	UserID         string `json:"userId,omitempty"`
	ExternalUserID string `json:"externalUserId,omitempty"`
	Cursor         string `json:"cursor,omitempty"`
	Limit          int32  `json:"limit,omitempty"`
	Type           string `json:"type,omitempty"`
}

type EntryMessage struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type LedgerResponse struct {
	Items      []*EntryMessage `json:"items"`
	HasMore    bool            `json:"hasMore"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// Клиент

type PointsClient interface {
	GetBalance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	GetLedger(ctx context.Context, in *LedgerRequest, opts ...grpc.CallOption) (*LedgerResponse, error)
}

type pointsClient struct {
	cc grpc.ClientConnInterface
}

func NewPointsClient(cc grpc.ClientConnInterface) PointsClient {
	return &pointsClient{cc}
}

func (c *pointsClient) GetBalance(ctx context.Context, in *BalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, Points_GetBalance_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointsClient) GetLedger(ctx context.Context, in *LedgerRequest, opts ...grpc.CallOption) (*LedgerResponse, error) {
	out := new(LedgerResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, Points_GetLedger_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Сервер

type PointsServer interface {
	GetBalance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	GetLedger(context.Context, *LedgerRequest) (*LedgerResponse, error)
}

type UnimplementedPointsServer struct{}

func (UnimplementedPointsServer) GetBalance(context.Context, *BalanceRequest) (*BalanceResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedPointsServer) GetLedger(context.Context, *LedgerRequest) (*LedgerResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLedger not implemented")
}

func RegisterPointsServer(s grpc.ServiceRegistrar, srv PointsServer) {
	s.RegisterService(&Points_ServiceDesc, srv)
}

func _Points_GetBalance_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BalanceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PointsServer).GetBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Points_GetBalance_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PointsServer).GetBalance(ctx, req.(*BalanceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Points_GetLedger_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LedgerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PointsServer).GetLedger(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Points_GetLedger_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PointsServer).GetLedger(ctx, req.(*LedgerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var Points_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "rewards.Points",
	HandlerType: (*PointsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBalance",
			Handler:    _Points_GetBalance_Handler,
		},
		{
			MethodName: "GetLedger",
			Handler:    _Points_GetLedger_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rewards/points",
}

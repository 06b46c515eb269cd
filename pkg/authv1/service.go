package authv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	TokenService_Refresh_FullMethodName  = "/auth.v1.TokenService/Refresh"
	TokenService_Revoke_FullMethodName   = "/auth.v1.TokenService/Revoke"
	TokenService_Validate_FullMethodName = "/auth.v1.TokenService/Validate"
)

// TokenServiceServer: серверная часть auth.v1.TokenService.
type TokenServiceServer interface {
	Refresh(context.Context, *RefreshRequest) (*TokenPairResponse, error)
	Revoke(context.Context, *RevokeRequest) (*RevokeResponse, error)
	Validate(context.Context, *ValidateRequest) (*ValidateResponse, error)
}

// UnimplementedTokenServiceServer отвечает codes.Unimplemented на все методы.
type UnimplementedTokenServiceServer struct{}

func (UnimplementedTokenServiceServer) Refresh(context.Context, *RefreshRequest) (*TokenPairResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Refresh not implemented")
}

func (UnimplementedTokenServiceServer) Revoke(context.Context, *RevokeRequest) (*RevokeResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Revoke not implemented")
}

func (UnimplementedTokenServiceServer) Validate(context.Context, *ValidateRequest) (*ValidateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Validate not implemented")
}

// RegisterTokenServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&TokenService_ServiceDesc, srv)
}

func _TokenService_Refresh_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RefreshRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TokenService_Refresh_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Refresh(ctx, req.(*RefreshRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TokenService_Revoke_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RevokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Revoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TokenService_Revoke_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Revoke(ctx, req.(*RevokeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TokenService_Validate_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TokenService_Validate_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Validate(ctx, req.(*ValidateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TokenService_ServiceDesc: дескриптор auth.v1.TokenService.
var TokenService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "auth.v1.TokenService",
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Refresh", Handler: _TokenService_Refresh_Handler},
		{MethodName: "Revoke", Handler: _TokenService_Revoke_Handler},
		{MethodName: "Validate", Handler: _TokenService_Validate_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/token_service",
}

// TokenServiceClient: клиентская часть auth.v1.TokenService.
type TokenServiceClient interface {
	Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*TokenPairResponse, error)
	Revoke(ctx context.Context, in *RevokeRequest, opts ...grpc.CallOption) (*RevokeResponse, error)
	Validate(ctx context.Context, in *ValidateRequest, opts ...grpc.CallOption) (*ValidateResponse, error)
}

type tokenServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTokenServiceClient оборачивает соединение; каждый вызов идёт с content-subtype json.
func NewTokenServiceClient(cc grpc.ClientConnInterface) TokenServiceClient {
	return &tokenServiceClient{cc: cc}
}

func (c *tokenServiceClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*TokenPairResponse, error) {
	out := new(TokenPairResponse)
	if err := c.cc.Invoke(ctx, TokenService_Refresh_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tokenServiceClient) Revoke(ctx context.Context, in *RevokeRequest, opts ...grpc.CallOption) (*RevokeResponse, error) {
	out := new(RevokeResponse)
	if err := c.cc.Invoke(ctx, TokenService_Revoke_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tokenServiceClient) Validate(ctx context.Context, in *ValidateRequest, opts ...grpc.CallOption) (*ValidateResponse, error) {
	out := new(ValidateResponse)
	if err := c.cc.Invoke(ctx, TokenService_Validate_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

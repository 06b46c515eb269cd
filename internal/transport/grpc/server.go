// Package grpc реализует внутренний gRPC-API auth-сервиса (auth.v1.TokenService)
// для соседних сервисов. Здесь только маппинг данных и ошибок сервисного слоя в gRPC.
//
// Маппинг ошибок:
//   - issuer.ErrInvalidToken/ErrTokenExpired/ErrUserNotFound -> codes.Unauthenticated;
//   - issuer.ErrNotFound -> codes.NotFound;
//   - issuer.ErrAlreadyRevoked -> codes.FailedPrecondition;
//   - issuer.ErrTenantNotMember -> codes.PermissionDenied;
//   - пустой токен -> codes.InvalidArgument;
//   - прочее -> codes.Internal с нейтральным сообщением.
//
// Validate при невалидном или просроченном токене RPC-ошибку не возвращает,
// а отдаёт {Valid:false}.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/pkg/log"
	"github.com/pribylovaa/storefront-auth/internal/service"
	authv1 "github.com/pribylovaa/storefront-auth/pkg/authv1"
)

type TokenServer struct {
	authv1.UnimplementedTokenServiceServer
	service *service.Service
}

// NewTokenServer создаёт gRPC-сервер токенов поверх сервисного слоя.
func NewTokenServer(service *service.Service) *TokenServer {
	return &TokenServer{service: service}
}

// Refresh обменивает refresh-токен на новую пару.
func (s *TokenServer) Refresh(ctx context.Context, req *authv1.RefreshRequest) (*authv1.TokenPairResponse, error) {
	const op = "transport.grpc.Refresh"

	if req.GetRefreshToken() == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	pair, err := s.service.Refresh(ctx, req.GetRefreshToken(), clientIP(ctx, req.GetClientIp()))
	if err != nil {
		return nil, toStatus(ctx, op, err)
	}

	return &authv1.TokenPairResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
	}, nil
}

// Revoke отзывает refresh-токен.
func (s *TokenServer) Revoke(ctx context.Context, req *authv1.RevokeRequest) (*authv1.RevokeResponse, error) {
	const op = "transport.grpc.Revoke"

	if req.GetRefreshToken() == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	if err := s.service.Logout(ctx, req.GetRefreshToken(), clientIP(ctx, req.GetClientIp())); err != nil {
		return nil, toStatus(ctx, op, err)
	}

	return &authv1.RevokeResponse{Ok: true}, nil
}

// Validate проверяет access-токен.
func (s *TokenServer) Validate(ctx context.Context, req *authv1.ValidateRequest) (*authv1.ValidateResponse, error) {
	const op = "transport.grpc.Validate"

	p, err := s.service.ValidateToken(ctx, req.GetAccessToken())
	if err != nil {
		if errors.Is(err, issuer.ErrInvalidToken) || errors.Is(err, issuer.ErrTokenExpired) {
			return &authv1.ValidateResponse{Valid: false}, nil
		}

		return nil, toStatus(ctx, op, err)
	}

	return principalToPB(p), nil
}

func principalToPB(p *models.Principal) *authv1.ValidateResponse {
	return &authv1.ValidateResponse{
		Valid:          true,
		UserId:         p.UserID,
		Username:       p.Username,
		Email:          p.Email,
		DisplayName:    p.DisplayName,
		ActiveTenantId: p.ActiveTenantID,
		TenantIds:      p.TenantIDs,
		Roles:          p.Roles,
		ExpiresAt:      p.ExpiresAt.Unix(),
	}
}

func toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, issuer.ErrInvalidToken),
		errors.Is(err, issuer.ErrTokenExpired),
		errors.Is(err, issuer.ErrUserNotFound):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, issuer.ErrNotFound):
		return status.Error(codes.NotFound, "refresh token not found")
	case errors.Is(err, issuer.ErrAlreadyRevoked):
		return status.Error(codes.FailedPrecondition, "refresh token already revoked")
	case errors.Is(err, issuer.ErrTenantNotMember):
		return status.Error(codes.PermissionDenied, "tenant access revoked")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	}

	log.From(ctx).Error("grpc_internal_error",
		slog.String("op", op),
		slog.String("err", err.Error()),
	)

	return status.Error(codes.Internal, "internal server error")
}

// clientIP: адрес конечного пользователя: из запроса, иначе хост peer.
func clientIP(ctx context.Context, fromReq string) string {
	if fromReq != "" {
		return fromReq
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}

	return host
}

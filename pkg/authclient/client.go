// Package authclient: Go-клиент auth.v1.TokenService для соседних сервисов
// витрины (Customers, Store): проверка access-токенов, ротация и отзыв refresh-токенов.
//
// Исходящие вызовы проходят цепочку metadata → timeout → logging
// (см. pkg/authclient/interceptors).
package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/storefront-auth/pkg/authclient/interceptors"
	authv1 "github.com/pribylovaa/storefront-auth/pkg/authv1"
)

var (
	// ErrInvalidToken: токен не принят auth-сервисом (невалиден, истёк или отозван).
	ErrInvalidToken = errors.New("authclient: invalid token")

	// ErrNotFound: отзыв неизвестного refresh-токена.
	ErrNotFound = errors.New("authclient: refresh token not found")

	// ErrAlreadyRevoked: refresh-токен уже неактивен.
	ErrAlreadyRevoked = errors.New("authclient: refresh token already revoked")

	// ErrForbidden: пользователь потерял доступ к активному тенанту.
	ErrForbidden = errors.New("authclient: tenant access revoked")
)

// Config: параметры подключения к auth-сервису.
type Config struct {
	Addr      string
	Timeout   time.Duration
	UserAgent string
}

// Principal: субъект проверенного access-токена.
type Principal struct {
	UserID         int64
	Username       string
	Email          string
	DisplayName    string
	ActiveTenantID *int64
	TenantIDs      []int64
	Roles          []string
	ExpiresAt      time.Time
}

// TokenPair: пара токенов после ротации.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Client: клиент auth.v1.TokenService. Безопасен для конкурентного использования.
type Client struct {
	conn *grpc.ClientConn
	api  authv1.TokenServiceClient
}

// New открывает соединение с auth-сервисом. opts добавляются после стандартных
// (например, grpc.WithContextDialer в тестах).
func New(cfg Config, log *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	const op = "authclient.New"

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%s: empty auth-service addr", op)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			interceptors.ClientWithMetadata(cfg.UserAgent),
			interceptors.ClientWithTimeout(cfg.Timeout),
			interceptors.ClientLogging(log),
		),
	}

	conn, err := grpc.NewClient(cfg.Addr, append(dialOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Client{conn: conn, api: authv1.NewTokenServiceClient(conn)}, nil
}

// Validate проверяет access-токен. Непринятый токен: ErrInvalidToken.
func (c *Client) Validate(ctx context.Context, accessToken string) (*Principal, error) {
	const op = "authclient.Validate"

	resp, err := c.api.Validate(ctx, &authv1.ValidateRequest{AccessToken: accessToken})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStatus(err))
	}

	if !resp.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &Principal{
		UserID:         resp.UserId,
		Username:       resp.Username,
		Email:          resp.Email,
		DisplayName:    resp.DisplayName,
		ActiveTenantID: resp.ActiveTenantId,
		TenantIDs:      resp.TenantIds,
		Roles:          resp.Roles,
		ExpiresAt:      time.Unix(resp.ExpiresAt, 0).UTC(),
	}, nil
}

// Refresh обменивает refresh-токен на новую пару от имени пользователя с адресом clientIP.
func (c *Client) Refresh(ctx context.Context, refreshToken, clientIP string) (*TokenPair, error) {
	const op = "authclient.Refresh"

	resp, err := c.api.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: refreshToken, ClientIp: clientIP})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStatus(err))
	}

	return &TokenPair{
		AccessToken:     resp.AccessToken,
		RefreshToken:    resp.RefreshToken,
		AccessExpiresAt: time.Unix(resp.AccessExpiresAt, 0).UTC(),
	}, nil
}

// Revoke отзывает refresh-токен.
func (c *Client) Revoke(ctx context.Context, refreshToken, clientIP string) error {
	const op = "authclient.Revoke"

	if _, err := c.api.Revoke(ctx, &authv1.RevokeRequest{RefreshToken: refreshToken, ClientIp: clientIP}); err != nil {
		return fmt.Errorf("%s: %w", op, mapStatus(err))
	}

	return nil
}

// Close закрывает соединение.
func (c *Client) Close() error {
	return c.conn.Close()
}

func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated:
		return ErrInvalidToken
	case codes.NotFound:
		return ErrNotFound
	case codes.FailedPrecondition:
		return ErrAlreadyRevoked
	case codes.PermissionDenied:
		return ErrForbidden
	default:
		return err
	}
}
